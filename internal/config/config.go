package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DefaultBaseURL    = "https://api.orange-sonatel.com"
	DefaultSuccessURL = "https://portail.toubasandaga.sn/paiement/succes?transaction="
	MaxQRValidity     = 86400
)

// Provider is the Orange Money configuration injected into the client. It is
// never mutated at runtime; bump Version when credentials change.
type Provider struct {
	Version         int
	Active          bool
	Name            string
	ClientID        string
	ClientSecret    string
	BaseURL         string
	Environment     string
	MerchantCode    string
	MerchantName    string
	APIKey          string
	CallbackURL     string
	DefaultCurrency string
	QRValidity      int
	HTTPTimeout     time.Duration
	SuccessURL      string
}

type Storage struct {
	Driver          string
	LocalDir        string
	LocalURLPrefix  string
	S3Region        string
	S3Bucket        string
	S3Prefix        string
	S3PublicBaseURL string
}

type SMTP struct {
	Host           string
	Port           string
	User           string
	Pass           string
	TLSMode        string
	SkipVerifyTLS  bool
	From           string
	FromName       string
	ExtraRecipient string
}

func (s SMTP) Enabled() bool { return s.Host != "" }

type Company struct {
	Name    string
	Address string
	City    string
	Country string
	Phone   string
	Email   string
	Website string
	LogoURL string
}

type Settlement struct {
	Interval    time.Duration
	MaxAttempts int
	Workers     int
	// Lease bounds how long one runner holds a settlement before another
	// may take it over.
	Lease time.Duration
}

type Config struct {
	Port            string
	MongoURI        string
	MongoDB         string
	StoreDriver     string
	PublicBaseURL   string
	WebhookToken    string
	JWTSecret       string
	WkhtmltopdfPath string
	// CORSOrigins lists the browser origins allowed on the payment API.
	CORSOrigins []string

	Provider   Provider
	Storage    Storage
	SMTP       SMTP
	Company    Company
	Settlement Settlement
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("mongo_db", "orangemoneydb")
	v.SetDefault("store_driver", "mongo")
	v.SetDefault("public_base_url", "http://localhost:8080")
	v.SetDefault("cors_allowed_origins", "*")

	v.SetDefault("om_config_version", 1)
	v.SetDefault("om_active", true)
	v.SetDefault("om_name", "Orange Money")
	v.SetDefault("om_base_url", DefaultBaseURL)
	v.SetDefault("om_environment", "sandbox")
	v.SetDefault("om_default_currency", "XOF")
	v.SetDefault("om_qr_validity", 3600)
	v.SetDefault("om_http_timeout", "30s")
	v.SetDefault("om_success_url", DefaultSuccessURL)

	v.SetDefault("storage_driver", "local")
	v.SetDefault("local_upload_dir", "./storage/invoices")
	v.SetDefault("local_upload_url_prefix", "/uploads")
	v.SetDefault("s3_prefix", "invoices")

	v.SetDefault("smtp_port", "587")
	v.SetDefault("smtp_tls_mode", "starttls")
	v.SetDefault("mail_from", "no-reply@ccts.sn")
	v.SetDefault("mail_from_name", "CCTS")
	v.SetDefault("mail_extra_recipient", "contact@ccts.sn")

	v.SetDefault("company_name", "CCTS")
	v.SetDefault("company_address", "Dakar, Sénégal")
	v.SetDefault("company_city", "Dakar")
	v.SetDefault("company_country", "Sénégal")
	v.SetDefault("company_phone", "70 922 17 75 | 70 843 04 36")
	v.SetDefault("company_email", "contact@ccts.sn")
	v.SetDefault("company_website", "www.toubasandaga.sn")

	v.SetDefault("settlement_interval", "1m")
	v.SetDefault("settlement_max_attempts", 5)
	v.SetDefault("settlement_workers", 4)
	v.SetDefault("settlement_lease", "5m")
}

// Load reads .env, an optional YAML file named by OM_CONFIG_FILE and the
// environment, in increasing order of precedence.
func Load() (Config, error) {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("error loading .env", "err", err)
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if path := os.Getenv("OM_CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) Config {
	return Config{
		Port:            v.GetString("port"),
		MongoURI:        v.GetString("mongouri"),
		MongoDB:         v.GetString("mongo_db"),
		StoreDriver:     strings.ToLower(v.GetString("store_driver")),
		PublicBaseURL:   strings.TrimRight(v.GetString("public_base_url"), "/"),
		WebhookToken:    v.GetString("webhook_callback_token"),
		JWTSecret:       v.GetString("api_jwt_secret"),
		WkhtmltopdfPath: v.GetString("wkhtmltopdf_path"),
		CORSOrigins:     splitList(v.GetString("cors_allowed_origins")),
		Provider: Provider{
			Version:         v.GetInt("om_config_version"),
			Active:          v.GetBool("om_active"),
			Name:            v.GetString("om_name"),
			ClientID:        v.GetString("om_client_id"),
			ClientSecret:    v.GetString("om_client_secret"),
			BaseURL:         strings.TrimRight(v.GetString("om_base_url"), "/"),
			Environment:     v.GetString("om_environment"),
			MerchantCode:    v.GetString("om_merchant_code"),
			MerchantName:    v.GetString("om_merchant_name"),
			APIKey:          v.GetString("om_api_key"),
			CallbackURL:     v.GetString("om_callback_url"),
			DefaultCurrency: v.GetString("om_default_currency"),
			QRValidity:      v.GetInt("om_qr_validity"),
			HTTPTimeout:     v.GetDuration("om_http_timeout"),
			SuccessURL:      v.GetString("om_success_url"),
		},
		Storage: Storage{
			Driver:          strings.ToLower(v.GetString("storage_driver")),
			LocalDir:        v.GetString("local_upload_dir"),
			LocalURLPrefix:  v.GetString("local_upload_url_prefix"),
			S3Region:        v.GetString("s3_region"),
			S3Bucket:        v.GetString("s3_bucket"),
			S3Prefix:        v.GetString("s3_prefix"),
			S3PublicBaseURL: v.GetString("s3_public_base_url"),
		},
		SMTP: SMTP{
			Host:           v.GetString("smtp_host"),
			Port:           v.GetString("smtp_port"),
			User:           v.GetString("smtp_user"),
			Pass:           v.GetString("smtp_pass"),
			TLSMode:        v.GetString("smtp_tls_mode"),
			SkipVerifyTLS:  v.GetBool("smtp_skip_verify_tls"),
			From:           v.GetString("mail_from"),
			FromName:       v.GetString("mail_from_name"),
			ExtraRecipient: v.GetString("mail_extra_recipient"),
		},
		Company: Company{
			Name:    v.GetString("company_name"),
			Address: v.GetString("company_address"),
			City:    v.GetString("company_city"),
			Country: v.GetString("company_country"),
			Phone:   v.GetString("company_phone"),
			Email:   v.GetString("company_email"),
			Website: v.GetString("company_website"),
			LogoURL: v.GetString("company_logo_url"),
		},
		Settlement: Settlement{
			Interval:    v.GetDuration("settlement_interval"),
			MaxAttempts: v.GetInt("settlement_max_attempts"),
			Workers:     v.GetInt("settlement_workers"),
			Lease:       v.GetDuration("settlement_lease"),
		},
	}
}

// splitList reads a comma separated setting.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

var nonDigits = regexp.MustCompile(`\D`)

// Validate reports configuration the server cannot start with. Provider
// problems only matter while the provider is active.
func (c Config) Validate() error {
	var errs []error
	if c.StoreDriver != "mongo" && c.StoreDriver != "memory" {
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver))
	}
	if c.StoreDriver == "mongo" && c.MongoURI == "" {
		errs = append(errs, errors.New("MONGOURI environment variable not set"))
	}
	if c.Provider.Active {
		if c.Provider.ClientID == "" || c.Provider.ClientSecret == "" {
			errs = append(errs, errors.New("OM_CLIENT_ID and OM_CLIENT_SECRET are required"))
		}
		if len(nonDigits.ReplaceAllString(c.Provider.MerchantCode, "")) != 6 {
			errs = append(errs, fmt.Errorf("OM_MERCHANT_CODE must contain exactly 6 digits, got %q", c.Provider.MerchantCode))
		}
	}
	if c.Provider.QRValidity <= 0 || c.Provider.QRValidity > MaxQRValidity {
		errs = append(errs, fmt.Errorf("OM_QR_VALIDITY must be between 1 and %d", MaxQRValidity))
	}
	return errors.Join(errs...)
}

// Ready reports whether payments can be initiated with this configuration.
func (p Provider) Ready() bool {
	return p.Active && p.ClientID != "" && p.ClientSecret != ""
}
