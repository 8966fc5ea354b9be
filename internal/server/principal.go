package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Capabilities granted to a caller.
const (
	CapCyclesWrite   = "cycles:write"
	CapAnalyticsRead = "analytics:read"
)

const (
	headerOperatorID = "X-Operator-ID"
	ctxPrincipal     = "principal"
)

// Principal is the authenticated caller.
type Principal struct {
	OperatorID   uint
	Capabilities map[string]bool
}

// Can reports whether the principal holds the capability.
func (p Principal) Can(capability string) bool {
	return p.Capabilities[capability]
}

// Claims is the token payload issued by the identity provider. Subject
// carries the operator id.
type Claims struct {
	Caps []string `json:"caps"`
	jwt.RegisteredClaims
}

var errUnauthenticated = errors.New("unauthenticated")

// authenticate resolves the caller for every request. With a secret it
// requires an HS256 bearer token; without one it trusts X-Operator-ID and
// grants every capability.
func authenticate(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var (
			p   Principal
			err error
		)
		if secret == "" {
			p, err = headerPrincipal(c.GetHeader(headerOperatorID))
		} else {
			p, err = tokenPrincipal(c.GetHeader("Authorization"), []byte(secret))
		}
		if err != nil {
			abortWith(c, http.StatusUnauthorized, "Unauthenticated", err.Error())
			return
		}
		c.Set(ctxPrincipal, p)
		c.Next()
	}
}

func headerPrincipal(raw string) (Principal, error) {
	p := Principal{Capabilities: map[string]bool{
		CapCyclesWrite:   true,
		CapAnalyticsRead: true,
	}}
	if raw == "" {
		return p, nil
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return Principal{}, fmt.Errorf("%s %q is not an operator id", headerOperatorID, raw)
	}
	p.OperatorID = uint(id)
	return p, nil
}

func tokenPrincipal(header string, secret []byte) (Principal, error) {
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" {
		return Principal{}, fmt.Errorf("%w: bearer token required", errUnauthenticated)
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", errUnauthenticated, err)
	}

	id, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || id == 0 {
		return Principal{}, fmt.Errorf("%w: subject %q is not an operator id", errUnauthenticated, claims.Subject)
	}
	p := Principal{OperatorID: uint(id), Capabilities: make(map[string]bool, len(claims.Caps))}
	for _, c := range claims.Caps {
		p.Capabilities[c] = true
	}
	return p, nil
}

func principalFrom(c *gin.Context) (Principal, bool) {
	v, ok := c.Get(ctxPrincipal)
	if !ok {
		return Principal{}, false
	}
	p, ok := v.(Principal)
	return p, ok
}

// requireCap rejects callers without the capability.
func requireCap(capability string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, _ := principalFrom(c)
		if !p.Can(capability) {
			abortWith(c, http.StatusForbidden, "Forbidden", fmt.Sprintf("missing capability %s", capability))
			return
		}
		c.Next()
	}
}

// requireOperator rejects callers whose identity is unknown. Writes are
// always attributed to an operator.
func requireOperator() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, _ := principalFrom(c)
		if p.OperatorID == 0 {
			abortWith(c, http.StatusUnauthorized, "Unauthenticated", "operator identity required")
			return
		}
		c.Next()
	}
}
