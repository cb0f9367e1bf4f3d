package discord

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"math/rand/v2"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// ParseProxy converts "user:password:ip:port" into an HTTP proxy URL.
func ParseProxy(line string) (string, error) {
	parts := strings.Split(strings.TrimSpace(line), ":")
	if len(parts) != 4 {
		return "", fmt.Errorf("%w: %d fields", ErrProxyFormat, len(parts))
	}
	for _, p := range parts {
		if p == "" {
			return "", fmt.Errorf("%w: empty field", ErrProxyFormat)
		}
	}
	if port, err := strconv.Atoi(parts[3]); err != nil || port <= 0 || port > 65535 {
		return "", fmt.Errorf("%w: bad port %q", ErrProxyFormat, parts[3])
	}
	u := url.URL{
		Scheme: "http",
		User:   url.UserPassword(parts[0], parts[1]),
		Host:   net.JoinHostPort(parts[2], parts[3]),
		Path:   "/",
	}
	return u.String(), nil
}

// TokenPool hands out each token once, last line first. Not safe for concurrent use.
type TokenPool struct {
	tokens []string
}

// LoadTokens reads one token per line. A missing or empty file yields ErrNoTokens.
func LoadTokens(path string) (*TokenPool, error) {
	lines, err := readLines(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s not found", ErrNoTokens, path)
		}
		return nil, err
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrNoTokens, path)
	}
	return &TokenPool{tokens: lines}, nil
}

// Pop removes and returns the last token.
func (p *TokenPool) Pop() (string, bool) {
	if len(p.tokens) == 0 {
		return "", false
	}
	last := len(p.tokens) - 1
	tok := p.tokens[last]
	p.tokens = p.tokens[:last]
	return tok, true
}

// Len returns the number of unused tokens.
func (p *TokenPool) Len() int { return len(p.tokens) }

// ProxyPool picks proxies at random without consuming them.
type ProxyPool struct {
	lines []string
	intN  func(int) int
}

// LoadProxies reads one "user:password:ip:port" entry per line. A missing or
// empty file yields ErrNoProxies; entries are validated when picked.
func LoadProxies(path string) (*ProxyPool, error) {
	lines, err := readLines(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s not found", ErrNoProxies, path)
		}
		return nil, err
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrNoProxies, path)
	}
	return &ProxyPool{lines: lines, intN: rand.IntN}, nil
}

// Pick returns a random proxy URL.
func (p *ProxyPool) Pick() (string, error) {
	return ParseProxy(p.lines[p.intN(len(p.lines))])
}

// Len returns the number of configured proxies.
func (p *ProxyPool) Len() int { return len(p.lines) }

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("discord: open %s: %w", path, err)
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("discord: read %s: %w", path, err)
	}
	return lines, nil
}
