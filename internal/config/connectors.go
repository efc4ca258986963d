package config

// FakestoreConfig configures the Fake Store API connector.
type FakestoreConfig struct {
	baseURL string
}

// NewFakestoreConfig creates a FakestoreConfig.
func NewFakestoreConfig(baseURL string) FakestoreConfig {
	return FakestoreConfig{baseURL: baseURL}
}

// BaseURL returns the Fake Store API base URL.
func (f FakestoreConfig) BaseURL() string { return f.baseURL }

// IsConfigured returns true if a base URL is set.
func (f FakestoreConfig) IsConfigured() bool { return f.baseURL != "" }

// MagentoConfig configures the Magento connector.
type MagentoConfig struct {
	baseURL string
	token   string
}

// NewMagentoConfig creates a MagentoConfig.
func NewMagentoConfig(baseURL, token string) MagentoConfig {
	return MagentoConfig{baseURL: baseURL, token: token}
}

// BaseURL returns the Magento store base URL, without the /rest suffix.
func (m MagentoConfig) BaseURL() string { return m.baseURL }

// Token returns the Magento integration bearer token.
func (m MagentoConfig) Token() string { return m.token }

// IsConfigured returns true if a base URL is set.
func (m MagentoConfig) IsConfigured() bool { return m.baseURL != "" }

// OdooConfig configures the Odoo connector.
type OdooConfig struct {
	url      string
	database string
	username string
	password string
}

// NewOdooConfig creates an OdooConfig.
func NewOdooConfig(url, database, username, password string) OdooConfig {
	return OdooConfig{
		url:      url,
		database: database,
		username: username,
		password: password,
	}
}

// URL returns the Odoo server URL.
func (o OdooConfig) URL() string { return o.url }

// Database returns the Odoo database name.
func (o OdooConfig) Database() string { return o.database }

// Username returns the Odoo login username.
func (o OdooConfig) Username() string { return o.username }

// Password returns the Odoo login password.
func (o OdooConfig) Password() string { return o.password }

// IsConfigured returns true if URL and database are set.
func (o OdooConfig) IsConfigured() bool { return o.url != "" && o.database != "" }

// SeedConfig configures the YAML seed file connector.
type SeedConfig struct {
	path string
}

// NewSeedConfig creates a SeedConfig.
func NewSeedConfig(path string) SeedConfig {
	return SeedConfig{path: path}
}

// Path returns the seed file path.
func (s SeedConfig) Path() string { return s.path }

// IsConfigured returns true if a path is set.
func (s SeedConfig) IsConfigured() bool { return s.path != "" }

// ConnectorsConfig groups all platform connector configurations.
type ConnectorsConfig struct {
	fakestore FakestoreConfig
	magento   MagentoConfig
	odoo      OdooConfig
	seed      SeedConfig
}

// NewConnectorsConfig creates an empty ConnectorsConfig.
func NewConnectorsConfig() ConnectorsConfig {
	return ConnectorsConfig{}
}

// Fakestore returns the Fake Store connector config.
func (c ConnectorsConfig) Fakestore() FakestoreConfig { return c.fakestore }

// Magento returns the Magento connector config.
func (c ConnectorsConfig) Magento() MagentoConfig { return c.magento }

// Odoo returns the Odoo connector config.
func (c ConnectorsConfig) Odoo() OdooConfig { return c.odoo }

// Seed returns the seed connector config.
func (c ConnectorsConfig) Seed() SeedConfig { return c.seed }

// WithFakestore returns a new config with the Fake Store connector set.
func (c ConnectorsConfig) WithFakestore(f FakestoreConfig) ConnectorsConfig {
	c.fakestore = f
	return c
}

// WithMagento returns a new config with the Magento connector set.
func (c ConnectorsConfig) WithMagento(m MagentoConfig) ConnectorsConfig {
	c.magento = m
	return c
}

// WithOdoo returns a new config with the Odoo connector set.
func (c ConnectorsConfig) WithOdoo(o OdooConfig) ConnectorsConfig {
	c.odoo = o
	return c
}

// WithSeed returns a new config with the seed connector set.
func (c ConnectorsConfig) WithSeed(s SeedConfig) ConnectorsConfig {
	c.seed = s
	return c
}
