// Package coord exposes typed single-target operations against the
// coordination server's resource endpoints. Every call goes through the
// gateway; nothing here talks to the network directly.
package coord

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"meshadmin.org/internal/gateway"
)

// Executor is the slice of the gateway the service needs. Tests substitute a
// fake; production wires *gateway.Client.
type Executor interface {
	Execute(ctx context.Context, method, path string, body any, out any) error
}

var _ Executor = (*gateway.Client)(nil)

// Service groups the per-resource operation sets.
type Service struct {
	Nodes  *NodeOps
	Routes *RouteOps
	DNS    *DNSOps
	Keys   *KeyOps
	Users  *UserOps
	Policy *PolicyOps
}

// NewService constructs the operation sets over one shared executor.
func NewService(gw Executor) (*Service, error) {
	if gw == nil {
		return nil, fmt.Errorf("coord: gateway is required")
	}
	return &Service{
		Nodes:  &NodeOps{gw: gw},
		Routes: &RouteOps{gw: gw},
		DNS:    &DNSOps{gw: gw},
		Keys:   &KeyOps{gw: gw},
		Users:  &UserOps{gw: gw},
		Policy: &PolicyOps{gw: gw},
	}, nil
}

// NodeOps operates on registered machines.
type NodeOps struct {
	gw Executor
}

func (n *NodeOps) List(ctx context.Context) ([]Node, error) {
	var out nodesEnvelope
	if err := n.gw.Execute(ctx, http.MethodGet, "/api/v1/node", nil, &out); err != nil {
		return nil, err
	}
	return out.Nodes, nil
}

func (n *NodeOps) Get(ctx context.Context, id string) (Node, error) {
	var out nodeEnvelope
	if err := n.gw.Execute(ctx, http.MethodGet, "/api/v1/node/"+url.PathEscape(id), nil, &out); err != nil {
		return Node{}, err
	}
	return out.Node, nil
}

// Register adds a machine to the mesh using the key it presented at startup.
func (n *NodeOps) Register(ctx context.Context, user, key string) (Node, error) {
	path := "/api/v1/node/register?user=" + url.QueryEscape(user) + "&key=" + url.QueryEscape(key)
	var out nodeEnvelope
	if err := n.gw.Execute(ctx, http.MethodPost, path, nil, &out); err != nil {
		return Node{}, err
	}
	return out.Node, nil
}

func (n *NodeOps) Delete(ctx context.Context, id string) error {
	return n.gw.Execute(ctx, http.MethodDelete, "/api/v1/node/"+url.PathEscape(id), nil, nil)
}

func (n *NodeOps) Rename(ctx context.Context, id, name string) (Node, error) {
	var out nodeEnvelope
	path := "/api/v1/node/" + url.PathEscape(id) + "/rename/" + url.PathEscape(name)
	if err := n.gw.Execute(ctx, http.MethodPost, path, nil, &out); err != nil {
		return Node{}, err
	}
	return out.Node, nil
}

// Expire posts the expiry to the coordination server so the node's key is
// actually invalidated, rather than reading current state back.
func (n *NodeOps) Expire(ctx context.Context, id string) error {
	body := map[string]string{"expiry": time.Now().UTC().Format(time.RFC3339)}
	return n.gw.Execute(ctx, http.MethodPost, "/api/v1/node/"+url.PathEscape(id)+"/expire", body, nil)
}

func (n *NodeOps) SetTags(ctx context.Context, id string, tags []string) (Node, error) {
	var out nodeEnvelope
	body := map[string][]string{"tags": tags}
	if err := n.gw.Execute(ctx, http.MethodPost, "/api/v1/node/"+url.PathEscape(id)+"/tags", body, &out); err != nil {
		return Node{}, err
	}
	return out.Node, nil
}

// Move reassigns the node to a new owning user.
func (n *NodeOps) Move(ctx context.Context, id, newOwner string) (Node, error) {
	var out nodeEnvelope
	body := map[string]string{"user": newOwner}
	if err := n.gw.Execute(ctx, http.MethodPost, "/api/v1/node/"+url.PathEscape(id)+"/user", body, &out); err != nil {
		return Node{}, err
	}
	return out.Node, nil
}

// RouteOps operates on advertised subnet routes.
type RouteOps struct {
	gw Executor
}

func (r *RouteOps) List(ctx context.Context) ([]Route, error) {
	var out routesEnvelope
	if err := r.gw.Execute(ctx, http.MethodGet, "/api/v1/routes", nil, &out); err != nil {
		return nil, err
	}
	return out.Routes, nil
}

func (r *RouteOps) Enable(ctx context.Context, id string) error {
	return r.gw.Execute(ctx, http.MethodPost, "/api/v1/routes/"+url.PathEscape(id)+"/enable", nil, nil)
}

func (r *RouteOps) Disable(ctx context.Context, id string) error {
	return r.gw.Execute(ctx, http.MethodPost, "/api/v1/routes/"+url.PathEscape(id)+"/disable", nil, nil)
}

func (r *RouteOps) Delete(ctx context.Context, id string) error {
	return r.gw.Execute(ctx, http.MethodDelete, "/api/v1/routes/"+url.PathEscape(id), nil, nil)
}

// DNSOps reads and updates tailnet DNS settings.
type DNSOps struct {
	gw Executor
}

func (d *DNSOps) Get(ctx context.Context) (DNSConfig, error) {
	var out dnsEnvelope
	if err := d.gw.Execute(ctx, http.MethodGet, "/api/v1/dns", nil, &out); err != nil {
		return DNSConfig{}, err
	}
	return out.DNS, nil
}

func (d *DNSOps) Update(ctx context.Context, cfg DNSConfig) (DNSConfig, error) {
	var out dnsEnvelope
	if err := d.gw.Execute(ctx, http.MethodPut, "/api/v1/dns", dnsEnvelope{DNS: cfg}, &out); err != nil {
		return DNSConfig{}, err
	}
	return out.DNS, nil
}

// KeyOps manages preauth and API keys.
type KeyOps struct {
	gw Executor
}

func (k *KeyOps) ListPreauth(ctx context.Context, user string) ([]PreauthKey, error) {
	path := "/api/v1/preauthkey"
	if user = strings.TrimSpace(user); user != "" {
		path += "?user=" + url.QueryEscape(user)
	}
	var out preauthKeysEnvelope
	if err := k.gw.Execute(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Keys, nil
}

func (k *KeyOps) CreatePreauth(ctx context.Context, user string, reusable, ephemeral bool, expiry time.Time) (PreauthKey, error) {
	body := map[string]any{
		"user":       user,
		"reusable":   reusable,
		"ephemeral":  ephemeral,
		"expiration": expiry.UTC().Format(time.RFC3339),
	}
	var out preauthKeyEnvelope
	if err := k.gw.Execute(ctx, http.MethodPost, "/api/v1/preauthkey", body, &out); err != nil {
		return PreauthKey{}, err
	}
	return out.Key, nil
}

func (k *KeyOps) ExpirePreauth(ctx context.Context, user, key string) error {
	body := map[string]string{"user": user, "key": key}
	return k.gw.Execute(ctx, http.MethodPost, "/api/v1/preauthkey/expire", body, nil)
}

func (k *KeyOps) ListAPIKeys(ctx context.Context) ([]APIKey, error) {
	var out apiKeysEnvelope
	if err := k.gw.Execute(ctx, http.MethodGet, "/api/v1/apikey", nil, &out); err != nil {
		return nil, err
	}
	return out.Keys, nil
}

func (k *KeyOps) CreateAPIKey(ctx context.Context, expiry time.Time) (string, error) {
	body := map[string]string{"expiration": expiry.UTC().Format(time.RFC3339)}
	var out apiKeyCreatedEnvelope
	if err := k.gw.Execute(ctx, http.MethodPost, "/api/v1/apikey", body, &out); err != nil {
		return "", err
	}
	return out.Key, nil
}

func (k *KeyOps) ExpireAPIKey(ctx context.Context, prefix string) error {
	body := map[string]string{"prefix": prefix}
	return k.gw.Execute(ctx, http.MethodPost, "/api/v1/apikey/expire", body, nil)
}

func (k *KeyOps) DeleteAPIKey(ctx context.Context, prefix string) error {
	return k.gw.Execute(ctx, http.MethodDelete, "/api/v1/apikey/"+url.PathEscape(prefix), nil, nil)
}

// UserOps manages coordination-server user accounts.
type UserOps struct {
	gw Executor
}

func (u *UserOps) List(ctx context.Context) ([]User, error) {
	var out usersEnvelope
	if err := u.gw.Execute(ctx, http.MethodGet, "/api/v1/user", nil, &out); err != nil {
		return nil, err
	}
	return out.Users, nil
}

func (u *UserOps) Create(ctx context.Context, name string) (User, error) {
	var out userEnvelope
	if err := u.gw.Execute(ctx, http.MethodPost, "/api/v1/user", map[string]string{"name": name}, &out); err != nil {
		return User{}, err
	}
	return out.User, nil
}

func (u *UserOps) Delete(ctx context.Context, name string) error {
	return u.gw.Execute(ctx, http.MethodDelete, "/api/v1/user/"+url.PathEscape(name), nil, nil)
}

func (u *UserOps) Rename(ctx context.Context, oldName, newName string) (User, error) {
	var out userEnvelope
	path := "/api/v1/user/" + url.PathEscape(oldName) + "/rename/" + url.PathEscape(newName)
	if err := u.gw.Execute(ctx, http.MethodPost, path, nil, &out); err != nil {
		return User{}, err
	}
	return out.User, nil
}

// PolicyOps reads and replaces the ACL policy document.
type PolicyOps struct {
	gw Executor
}

func (p *PolicyOps) Get(ctx context.Context) (string, error) {
	var out policyEnvelope
	if err := p.gw.Execute(ctx, http.MethodGet, "/api/v1/policy", nil, &out); err != nil {
		return "", err
	}
	return out.Policy, nil
}

func (p *PolicyOps) Update(ctx context.Context, policy string) error {
	return p.gw.Execute(ctx, http.MethodPut, "/api/v1/policy", policyEnvelope{Policy: policy}, nil)
}
