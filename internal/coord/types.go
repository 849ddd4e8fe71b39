package coord

import (
	"errors"
	"time"
)

// Node is a machine registered with the coordination server.
type Node struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Owner    string    `json:"owner"`
	Tags     []string  `json:"tags"`
	Online   bool      `json:"online"`
	Expiry   time.Time `json:"expiry"`
	LastSeen time.Time `json:"last_seen"`
}

// Route is a subnet route advertised by a node.
type Route struct {
	ID      string `json:"id"`
	NodeID  string `json:"node_id"`
	Prefix  string `json:"prefix"`
	Enabled bool   `json:"enabled"`
}

// DNSConfig is the tailnet-wide DNS configuration.
type DNSConfig struct {
	Nameservers   []string `json:"nameservers"`
	SearchDomains []string `json:"search_domains"`
	MagicDNS      bool     `json:"magic_dns"`
	BaseDomain    string   `json:"base_domain"`
}

// PreauthKey is a node-registration key scoped to a user.
type PreauthKey struct {
	ID        string    `json:"id"`
	User      string    `json:"user"`
	Key       string    `json:"key"`
	Reusable  bool      `json:"reusable"`
	Ephemeral bool      `json:"ephemeral"`
	Expiry    time.Time `json:"expiration"`
}

// APIKey is an administrative API credential. Only the prefix is ever read
// back; the secret is returned once at creation.
type APIKey struct {
	ID     string    `json:"id"`
	Prefix string    `json:"prefix"`
	Expiry time.Time `json:"expiration"`
}

// User is an account on the coordination server that owns nodes.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Response envelopes. Validate failures surface as InvalidResponse at the
// gateway, so a half-formed body never reaches a handler.

type nodeEnvelope struct {
	Node Node `json:"node"`
}

func (e *nodeEnvelope) Validate() error {
	if e.Node.ID == "" {
		return errors.New("node id missing")
	}
	return nil
}

type nodesEnvelope struct {
	Nodes []Node `json:"nodes"`
}

func (e *nodesEnvelope) Validate() error {
	for _, n := range e.Nodes {
		if n.ID == "" {
			return errors.New("node id missing")
		}
	}
	return nil
}

type routesEnvelope struct {
	Routes []Route `json:"routes"`
}

func (e *routesEnvelope) Validate() error {
	for _, r := range e.Routes {
		if r.ID == "" {
			return errors.New("route id missing")
		}
	}
	return nil
}

type dnsEnvelope struct {
	DNS DNSConfig `json:"dns"`
}

func (e *dnsEnvelope) Validate() error { return nil }

type preauthKeysEnvelope struct {
	Keys []PreauthKey `json:"preauth_keys"`
}

func (e *preauthKeysEnvelope) Validate() error {
	for _, k := range e.Keys {
		if k.ID == "" {
			return errors.New("preauth key id missing")
		}
	}
	return nil
}

type preauthKeyEnvelope struct {
	Key PreauthKey `json:"preauth_key"`
}

func (e *preauthKeyEnvelope) Validate() error {
	if e.Key.ID == "" {
		return errors.New("preauth key id missing")
	}
	return nil
}

type apiKeysEnvelope struct {
	Keys []APIKey `json:"api_keys"`
}

func (e *apiKeysEnvelope) Validate() error {
	for _, k := range e.Keys {
		if k.Prefix == "" {
			return errors.New("api key prefix missing")
		}
	}
	return nil
}

type apiKeyCreatedEnvelope struct {
	Key string `json:"api_key"`
}

func (e *apiKeyCreatedEnvelope) Validate() error {
	if e.Key == "" {
		return errors.New("api key missing")
	}
	return nil
}

type usersEnvelope struct {
	Users []User `json:"users"`
}

func (e *usersEnvelope) Validate() error {
	for _, u := range e.Users {
		if u.Name == "" {
			return errors.New("user name missing")
		}
	}
	return nil
}

type userEnvelope struct {
	User User `json:"user"`
}

func (e *userEnvelope) Validate() error {
	if e.User.Name == "" {
		return errors.New("user name missing")
	}
	return nil
}

type policyEnvelope struct {
	Policy string `json:"policy"`
}

func (e *policyEnvelope) Validate() error {
	if e.Policy == "" {
		return errors.New("policy body missing")
	}
	return nil
}
