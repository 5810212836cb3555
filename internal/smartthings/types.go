package smartthings

type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	ExpiresIn    int    `json:"expires_in,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

type Category struct {
	Name         string `json:"name"`
	CategoryType string `json:"categoryType,omitempty"`
}

type CapabilityReference struct {
	ID      string `json:"id"`
	Version int    `json:"version,omitempty"`
}

type Component struct {
	ID           string                `json:"id"`
	Label        string                `json:"label,omitempty"`
	Capabilities []CapabilityReference `json:"capabilities,omitempty"`
	Categories   []Category            `json:"categories,omitempty"`
}

type Device struct {
	DeviceID   string      `json:"deviceId"`
	Name       string      `json:"name"`
	Label      string      `json:"label"`
	LocationID string      `json:"locationId,omitempty"`
	Components []Component `json:"components,omitempty"`
}

// DisplayName is the user-assigned label, falling back to the device name.
func (d Device) DisplayName() string {
	if d.Label != "" {
		return d.Label
	}
	return d.Name
}

// HasCategory reports whether any component of the device is in category name.
func (d Device) HasCategory(name string) bool {
	for _, c := range d.Components {
		for _, cat := range c.Categories {
			if cat.Name == name {
				return true
			}
		}
	}
	return false
}

type Command struct {
	Component  string `json:"component"`
	Capability string `json:"capability"`
	Command    string `json:"command"`
	Arguments  []any  `json:"arguments,omitempty"`
}

type commandRequest struct {
	Commands []Command `json:"commands"`
}

type link struct {
	Href string `json:"href"`
}

type deviceList struct {
	Items []Device `json:"items"`
	Links struct {
		Next *link `json:"next"`
	} `json:"_links"`
}
