package config

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"

	"pasarela/internal/credentials"
	"pasarela/internal/crypto"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type AppCfg struct{ Env, Port, BaseURL string }
type DBCfg struct{ DSN string }

type RedisCfg struct {
	Addr           string
	ClientCacheTTL time.Duration
}

type ERPCfg struct {
	BaseURL  string
	Username string
	Password string
	Timeout  time.Duration
}

type SMTPCfg struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

type RecaptchaCfg struct {
	Secret   string
	MinScore float64
}

type ProviderCfg struct {
	Timeout       time.Duration
	TokenSkew     time.Duration
	CobaltBaseURL string
	PayPalBaseURL string
	YappyBaseURL  string
}

type VerificationCfg struct {
	CodeTTL time.Duration
}

type SecurityCfg struct {
	AESKey       []byte
	APIKeyHashes []string
	AdminToken   string
}

type Cfg struct {
	App          AppCfg
	DB           DBCfg
	Redis        RedisCfg
	ERP          ERPCfg
	SMTP         SMTPCfg
	Recaptcha    RecaptchaCfg
	Provider     ProviderCfg
	Verification VerificationCfg
	Sec          SecurityCfg
	Companies    map[string]credentials.Company
}

func Load() Cfg {
	// .env is optional; real deployments set process env directly.
	_ = godotenv.Load()

	viper.AutomaticEnv()
	viper.SetDefault("APP_ENV", "sandbox")
	viper.SetDefault("APP_PORT", "8080")
	viper.SetDefault("PROVIDER_TIMEOUT_SEC", 30)
	viper.SetDefault("TOKEN_SKEW_SEC", 60)
	viper.SetDefault("VERIFICATION_CODE_TTL_MIN", 10)
	viper.SetDefault("CLIENT_CACHE_TTL_MIN", 30)
	viper.SetDefault("ERP_TIMEOUT_SEC", 20)
	viper.SetDefault("RECAPTCHA_MIN_SCORE", 0.5)
	viper.SetDefault("COBALT_BASE_URL", "https://sandbox.cobaltpay.com")
	viper.SetDefault("PAYPAL_BASE_URL", "https://api-m.sandbox.paypal.com")
	viper.SetDefault("YAPPY_BASE_URL", "https://pagosbg.bgeneral.com")
	viper.SetDefault("ADMIN_TOKEN", "")

	keyB64 := viper.GetString("AES_256_KEY_BASE64")
	key, keyErr := base64.StdEncoding.DecodeString(keyB64)

	cfg := Cfg{
		App: AppCfg{
			Env:     viper.GetString("APP_ENV"),
			Port:    viper.GetString("APP_PORT"),
			BaseURL: viper.GetString("APP_BASE_URL"),
		},
		DB: DBCfg{DSN: viper.GetString("DB_DSN")},
		Redis: RedisCfg{
			Addr:           viper.GetString("REDIS_ADDR"),
			ClientCacheTTL: time.Duration(viper.GetInt("CLIENT_CACHE_TTL_MIN")) * time.Minute,
		},
		ERP: ERPCfg{
			BaseURL:  viper.GetString("ERP_BASE_URL"),
			Username: viper.GetString("ERP_USERNAME"),
			Password: viper.GetString("ERP_PASSWORD"),
			Timeout:  time.Duration(viper.GetInt("ERP_TIMEOUT_SEC")) * time.Second,
		},
		SMTP: SMTPCfg{
			Host:     viper.GetString("SMTP_HOST"),
			Port:     viper.GetString("SMTP_PORT"),
			Username: viper.GetString("SMTP_USERNAME"),
			Password: viper.GetString("SMTP_PASSWORD"),
			From:     viper.GetString("SMTP_FROM"),
		},
		Recaptcha: RecaptchaCfg{
			Secret:   viper.GetString("RECAPTCHA_SECRET"),
			MinScore: viper.GetFloat64("RECAPTCHA_MIN_SCORE"),
		},
		Provider: ProviderCfg{
			Timeout:       time.Duration(viper.GetInt("PROVIDER_TIMEOUT_SEC")) * time.Second,
			TokenSkew:     time.Duration(viper.GetInt("TOKEN_SKEW_SEC")) * time.Second,
			CobaltBaseURL: viper.GetString("COBALT_BASE_URL"),
			PayPalBaseURL: viper.GetString("PAYPAL_BASE_URL"),
			YappyBaseURL:  viper.GetString("YAPPY_BASE_URL"),
		},
		Verification: VerificationCfg{
			CodeTTL: time.Duration(viper.GetInt("VERIFICATION_CODE_TTL_MIN")) * time.Minute,
		},
		Sec: SecurityCfg{
			AESKey:       key,
			APIKeyHashes: splitCSV(viper.GetString("API_KEY_HASHES")),
			AdminToken:   strings.TrimSpace(viper.GetString("ADMIN_TOKEN")),
		},
	}

	if cfg.DB.DSN == "" {
		log.Fatal().Msg("DB_DSN is required")
	}
	if cfg.ERP.BaseURL == "" {
		log.Fatal().Msg("ERP_BASE_URL is required")
	}
	if keyErr != nil || len(cfg.Sec.AESKey) != 32 {
		log.Fatal().Msg("AES_256_KEY_BASE64 must be a valid 32-byte base64 key")
	}

	companies, err := loadCompanies(viper.GetString("COMPANIES_JSON"), cfg.Sec.AESKey)
	if err != nil {
		log.Fatal().Err(err).Msg("COMPANIES_JSON is invalid")
	}
	cfg.Companies = companies

	return cfg
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// companyEntry is the on-disk shape of provisioned credentials. Secret fields
// are AES-GCM encrypted with the deployment key (see tools/secret_encrypt.go).
type companyEntry struct {
	Cobalt *struct {
		ClientID        string `json:"client_id"`
		ClientSecretEnc string `json:"client_secret_enc"`
	} `json:"cobalt,omitempty"`
	PayPal *struct {
		ClientID        string `json:"client_id"`
		ClientSecretEnc string `json:"client_secret_enc"`
	} `json:"paypal,omitempty"`
	Yappy *struct {
		MerchantID   string `json:"merchant_id"`
		SecretKeyEnc string `json:"secret_key_enc"`
		Domain       string `json:"domain"`
	} `json:"yappy,omitempty"`
}

func loadCompanies(raw string, key []byte) (map[string]credentials.Company, error) {
	out := map[string]credentials.Company{}
	if strings.TrimSpace(raw) == "" {
		return out, nil
	}

	var entries map[string]companyEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, err
	}

	for code, e := range entries {
		var c credentials.Company
		if e.Cobalt != nil {
			secret, err := crypto.DecryptString(key, e.Cobalt.ClientSecretEnc)
			if err != nil {
				return nil, err
			}
			c.Cobalt = &credentials.Cobalt{ClientID: e.Cobalt.ClientID, ClientSecret: secret}
		}
		if e.PayPal != nil {
			secret, err := crypto.DecryptString(key, e.PayPal.ClientSecretEnc)
			if err != nil {
				return nil, err
			}
			c.PayPal = &credentials.PayPal{ClientID: e.PayPal.ClientID, ClientSecret: secret}
		}
		if e.Yappy != nil {
			secret, err := crypto.DecryptString(key, e.Yappy.SecretKeyEnc)
			if err != nil {
				return nil, err
			}
			c.Yappy = &credentials.Yappy{MerchantID: e.Yappy.MerchantID, SecretKey: secret, Domain: e.Yappy.Domain}
		}
		out[code] = c
	}
	return out, nil
}
