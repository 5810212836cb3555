package config

const maskedValue = "********"

func mask(s string) string {
	if s == "" {
		return ""
	}
	return maskedValue
}

// Masked returns a copy of the configuration with secrets replaced, for display.
func (c Config) Masked() Config {
	c.Secret = mask(c.Secret)
	c.APIKey = mask(c.APIKey)
	c.SmartThings.ClientSecret = mask(c.SmartThings.ClientSecret)
	c.SmartThings.RefreshToken = mask(c.SmartThings.RefreshToken)
	c.Redis.Password = mask(c.Redis.Password)
	c.Email.Password = mask(c.Email.Password)
	if c.Storage.Postgres != nil {
		pg := *c.Storage.Postgres
		pg.DSN = mask(pg.DSN)
		c.Storage.Postgres = &pg
	}
	return c
}
