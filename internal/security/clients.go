package security

// Permissions checked by the HTTP API.
const (
	PermCartRead  = "cart.read"
	PermCartWrite = "cart.write"
)

// In-memory client registry (replace with DB/config later)
type Client struct {
	ID      string
	Secret  string
	Perms   []string // e.g. {"cart.read","cart.write"}
	Enabled bool
}

var Clients = map[string]Client{
	"simulated-client": {ID: "simulated-client", Secret: "simulated-client-secret", Perms: []string{PermCartRead, PermCartWrite}, Enabled: true},
	"svc-shop-agent":   {ID: "svc-shop-agent", Secret: "agent-secret", Perms: []string{PermCartRead, PermCartWrite}, Enabled: true},
	"svc-analytics":    {ID: "svc-analytics", Secret: "ana-secret", Perms: []string{PermCartRead}, Enabled: true},
}

// Authenticate returns the enabled client whose secret matches.
func Authenticate(clientID, secret string) (Client, bool) {
	cl, ok := Clients[clientID]
	if !ok || !cl.Enabled || !secretEqual(secret, cl.Secret) {
		return Client{}, false
	}
	return cl, true
}
