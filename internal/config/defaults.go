package config

var defaults = map[string]any{
	"secret":             "",
	"log_level":          "info",
	"listen":             ":10000",
	"allowed_networks":   "",
	"api_key":            "",
	"operator_token_ttl": 60 * 24, // one day

	"rate_limit.per_minute": 30,
	"rate_limit.burst":      10,

	"smartthings.client_id":         "",
	"smartthings.client_secret":     "",
	"smartthings.refresh_token":     "",
	"smartthings.token_url":         "https://api.smartthings.com/oauth/token",
	"smartthings.api_url":           "https://api.smartthings.com/v1",
	"smartthings.timeout":           "10s",
	"smartthings.refresh_interval":  "12h",
	"smartthings.component":         "main",
	"smartthings.capability":        "switch",
	"smartthings.fallback_category": "Switch",
	"smartthings.keywords":          []string{"remote", "start", "stop", "старт", "стоп"},
	"smartthings.on.device_id":      "",
	"smartthings.on.command":        "on",
	"smartthings.off.device_id":     "",
	"smartthings.off.command":       "off",

	"power.noise_window": "60s",
	"power.noise_store":  "memory",

	"scheduler.interval":     "5m",
	"scheduler.checkin_lead": "2h",
	"scheduler.checkout_lag": "1h",

	"redis.addr":     "localhost:6379",
	"redis.password": "",
	"redis.db":       0,

	"email.host":     "",
	"email.port":     25,
	"email.username": "",
	"email.password": "",
	"email.from":     "noreply@example.com",
	"email.to":       []string{},

	"storage.type":         "sqlite",
	"storage.sqlite.path":  "./data/storage.db",
	"storage.postgres.dsn": "",
}

func Defaults() map[string]any {
	values := make(map[string]any)
	for k, v := range defaults {
		values[k] = v
	}
	return values
}
