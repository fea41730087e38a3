package llm

import "github.com/bkeller/terrarisk/internal/backend"

// ClientSet binds each backend kind to its single invocation client.
type ClientSet struct {
	byKind map[backend.Kind]Client
}

// NewClientSet copies the supplied bindings.
func NewClientSet(clients map[backend.Kind]Client) ClientSet {
	copied := make(map[backend.Kind]Client, len(clients))
	for kind, client := range clients {
		copied[kind] = client
	}
	return ClientSet{byKind: copied}
}

// For returns the client bound to a kind.
func (s ClientSet) For(kind backend.Kind) (Client, bool) {
	client, ok := s.byKind[kind]
	return client, ok
}
