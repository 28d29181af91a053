package sites

import "time"

// Site is one managed website and its connector credential state.
// Key and Secret are empty when the site is disconnected.
type Site struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	BaseURL       string    `json:"baseUrl"`
	Key           string    `json:"-"`
	Secret        string    `json:"-"`
	PluginVersion string    `json:"pluginVersion,omitempty"`
	AgentVersion  string    `json:"agentVersion,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Credentials is a connector key/secret pair.
type Credentials struct {
	Key    string `json:"key"`
	Secret string `json:"secret"`
}
