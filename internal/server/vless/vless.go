// Package vless builds and decomposes VLESS connection strings.
package vless

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strconv"
)

const Scheme = "vless://"

// identifierPattern matches the scheme, a canonical 8-4-4-4-12 hex identifier
// and the '@' that separates it from the host.
var identifierPattern = regexp.MustCompile(`^vless://([0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12})@`)

// ExtractIdentifier returns the client identifier embedded in a connection
// string. ok is false for anything that is not a well-formed vless URI prefix;
// it never fails otherwise.
func ExtractIdentifier(connection string) (id string, ok bool) {
	m := identifierPattern.FindStringSubmatch(connection)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// Params are the transport parameters encoded in the query string.
type Params struct {
	Network     string
	Security    string
	Flow        string
	SNI         string
	Fingerprint string
	PublicKey   string
	ShortID     string
}

// Build composes vless://<id>@<host>:<port>?<params>#<name>.
func Build(id, host string, port int, p Params, name string) string {
	q := url.Values{}
	set := func(k, v string) {
		if v != "" {
			q.Set(k, v)
		}
	}
	set("type", p.Network)
	set("security", p.Security)
	set("flow", p.Flow)
	set("sni", p.SNI)
	set("fp", p.Fingerprint)
	set("pbk", p.PublicKey)
	set("sid", p.ShortID)

	s := fmt.Sprintf("%s%s@%s", Scheme, id, net.JoinHostPort(host, strconv.Itoa(port)))
	if enc := q.Encode(); enc != "" {
		s += "?" + enc
	}
	if name != "" {
		s += "#" + url.PathEscape(name)
	}
	return s
}
