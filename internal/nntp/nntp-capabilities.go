package nntp

// Client-side CAPABILITIES support and posting, added for FNAL worker use.
// The teacher repo only had a server-side capability responder
// (getServerCapabilities in nntp-server-cliconns.go); this is the client
// counterpart that issues CAPABILITIES and parses the advertised LIST
// sub-variants, following the same textConn.Cmd/ReadCodeLine pattern used
// throughout nntp-client-commands.go.

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrArticleNotFound and ErrArticleRemoved are the sentinels
// nntp-client-commands.go's ARTICLE/HEAD/BODY handlers return on codes 430
// and 451 respectively. They were referenced there without a declaration
// anywhere in the package; declared here since capabilities.go is the
// client-side error-handling home.
var (
	ErrArticleNotFound = errors.New("no such article found")
	ErrArticleRemoved  = errors.New("article removed (DMCA/cancel)")
)

// ServerCapabilities holds what a server advertised in response to
// CAPABILITIES, restricted to what Wire Worker needs: which LIST variants
// it supports.
type ServerCapabilities struct {
	ListVariants map[string]bool // "ACTIVE", "NEWSGROUPS", or "" for basic LIST
	CanPost      bool
	Retrieved    bool
}

// DefaultCapabilities is used when CAPABILITIES is unsupported or fails --
// the worker falls back to trying every LIST variant in preference order.
func DefaultCapabilities() *ServerCapabilities {
	return &ServerCapabilities{ListVariants: map[string]bool{}, Retrieved: false}
}

// GetListVariantsInOrder returns every candidate LIST sub-variant to try, in
// ACTIVE -> NEWSGROUPS -> basic preference order, restricted to advertised
// variants when known.
func (s *ServerCapabilities) GetListVariantsInOrder() []string {
	all := []string{"ACTIVE", "NEWSGROUPS", ""}
	if !s.Retrieved {
		return all
	}
	var out []string
	for _, v := range all {
		if s.ListVariants[v] {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		// Server claimed CAPABILITIES but didn't advertise a LIST variant we
		// recognize: fall back to trying everything.
		return all
	}
	return out
}

// Capabilities issues CAPABILITIES and parses the advertised LIST
// sub-variants. Any error (including an unsupported command) yields
// DefaultCapabilities rather than failing the connection -- CAPABILITIES is
// optional in RFC 3977 and older servers reject it outright.
func (c *BackendConn) Capabilities() (*ServerCapabilities, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return nil, fmt.Errorf("not connected")
	}
	c.lastUsed = time.Now()

	id, err := c.textConn.Cmd("CAPABILITIES")
	if err != nil {
		return DefaultCapabilities(), nil
	}

	c.textConn.StartResponse(id)
	defer c.textConn.EndResponse(id)

	code, _, err := c.textConn.ReadCodeLine(101)
	if err != nil || code != 101 {
		return DefaultCapabilities(), nil
	}

	lines, err := c.readMultilineResponse("capabilities")
	if err != nil {
		return DefaultCapabilities(), nil
	}

	caps := &ServerCapabilities{ListVariants: map[string]bool{}, Retrieved: true}
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch strings.ToUpper(fields[0]) {
		case "LIST":
			if len(fields) == 1 {
				caps.ListVariants[""] = true
				continue
			}
			for _, variant := range fields[1:] {
				caps.ListVariants[strings.ToUpper(variant)] = true
			}
		case "POST":
			caps.CanPost = true
		}
	}
	return caps, nil
}

// ListGroupsVariant issues LIST, LIST ACTIVE, or LIST NEWSGROUPS depending on
// variant ("" for basic LIST), generalizing ListGroups to the capability
// negotiation Wire Worker needs.
func (c *BackendConn) ListGroupsVariant(variant string) ([]GroupInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return nil, fmt.Errorf("not connected")
	}
	c.lastUsed = time.Now()

	cmd := "LIST"
	if variant != "" {
		cmd = "LIST " + variant
	}
	id, err := c.textConn.Cmd(cmd)
	if err != nil {
		return nil, fmt.Errorf("failed to send %s command: %w", cmd, err)
	}

	c.textConn.StartResponse(id)
	defer c.textConn.EndResponse(id)

	code, message, err := c.textConn.ReadCodeLine(215)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", cmd, err)
	}
	if code != 215 {
		return nil, fmt.Errorf("unexpected %s response: %d %s", cmd, code, message)
	}

	lines, err := c.readMultilineResponse("list")
	if err != nil {
		return nil, fmt.Errorf("failed to read group list: %w", err)
	}

	groups := make([]GroupInfo, 0, len(lines))
	for _, line := range lines {
		var group GroupInfo
		var parseErr error
		if variant == "NEWSGROUPS" {
			group, parseErr = parseNewsgroupsLine(line)
		} else {
			group, parseErr = c.parseGroupLine(line)
		}
		if parseErr != nil {
			continue
		}
		groups = append(groups, group)
	}
	return groups, nil
}

// parseNewsgroupsLine parses a "LIST NEWSGROUPS" line: "group<tab>description".
func parseNewsgroupsLine(line string) (GroupInfo, error) {
	parts := strings.SplitN(line, "\t", 2)
	if len(parts) == 1 {
		parts = strings.SplitN(line, " ", 2)
	}
	if len(parts) == 0 || parts[0] == "" {
		return GroupInfo{}, fmt.Errorf("malformed NEWSGROUPS line: %s", line)
	}
	g := GroupInfo{Name: parts[0]}
	if len(parts) > 1 {
		g.Description = strings.TrimSpace(parts[1])
	}
	return g, nil
}

// PostArticle issues POST, sends headers + blank line + body + terminating
// dot, and waits for server acceptance.
func (c *BackendConn) PostArticle(group string, headers [][2]string, body string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return fmt.Errorf("not connected")
	}
	c.lastUsed = time.Now()

	id, err := c.textConn.Cmd("POST")
	if err != nil {
		return fmt.Errorf("failed to send POST command: %w", err)
	}
	c.textConn.StartResponse(id)
	code, message, err := c.textConn.ReadCodeLine(340)
	c.textConn.EndResponse(id)
	if err != nil {
		return fmt.Errorf("failed to read POST response: %w", err)
	}
	if code != 340 {
		return fmt.Errorf("server refused posting: %d %s", code, message)
	}

	dw := c.textConn.DotWriter()
	hasNewsgroups := false
	for _, h := range headers {
		if strings.EqualFold(h[0], "newsgroups") {
			hasNewsgroups = true
		}
		fmt.Fprintf(dw, "%s: %s\r\n", h[0], h[1])
	}
	if !hasNewsgroups {
		fmt.Fprintf(dw, "Newsgroups: %s\r\n", group)
	}
	fmt.Fprint(dw, "\r\n")
	fmt.Fprint(dw, body)
	if err := dw.Close(); err != nil {
		return fmt.Errorf("failed to send article body: %w", err)
	}

	code, message, err = c.textConn.ReadCodeLine(240)
	if err != nil {
		return fmt.Errorf("failed to read posting confirmation: %w", err)
	}
	if code != 240 {
		return fmt.Errorf("posting rejected: %d %s", code, message)
	}
	return nil
}
