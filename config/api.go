package config

// APIConfig configures the HTTP API.
type APIConfig struct {
	Address string `json:"address"`
	// Token, when set, is required as a bearer token on the schedule log
	// endpoint.
	Token string `json:"token"`
}

func (c *APIConfig) SetDefaults() {
	if c.Address == "" {
		c.Address = ":8080"
	}
}
