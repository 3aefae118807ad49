package config

import (
	"os"
	"strconv"
	"time"

	"intake/internal/catalog"
)

// Config captures everything the server needs from the environment so main
// stays lean. Optional backends (redis, postgres, kafka) are enabled by the
// presence of their setting.
type Config struct {
	Addr     string
	LogLevel string

	// Catalog transport.
	CatalogAPIURL string
	CatalogToken  string
	PageSize      int

	// Session-token verification. DevMode skips it entirely.
	ClientSecret string
	DevMode      bool

	// Locale tag used for option-set collation, e.g. "he" or "en".
	Locale string

	// RequiredFields selects the buyer-row policy: "name_id" or "full_contact".
	RequiredFields string

	// PhoneCountry is the default country short-code stored with buyer phones.
	PhoneCountry string

	SessionTTL time.Duration

	RedisURL     string
	PostgresDSN  string
	KafkaBrokers string
	KafkaTopic   string

	Schema catalog.Schema
}

// FromEnv builds a Config from environment variables. Board and column
// identifiers are assigned by the remote service and must match the account
// the token belongs to; the defaults are the production account's.
func FromEnv() Config {
	cfg := Config{
		Addr:           envOr("INTAKE_ADDR", ":8080"),
		LogLevel:       envOr("INTAKE_LOG_LEVEL", "info"),
		CatalogAPIURL:  envOr("INTAKE_CATALOG_API_URL", "https://api.monday.com/v2"),
		CatalogToken:   os.Getenv("INTAKE_CATALOG_TOKEN"),
		PageSize:       envInt("INTAKE_PAGE_SIZE", 100),
		ClientSecret:   os.Getenv("INTAKE_CLIENT_SECRET"),
		DevMode:        os.Getenv("INTAKE_DEV_MODE") == "true",
		Locale:         envOr("INTAKE_LOCALE", "he"),
		RequiredFields: envOr("INTAKE_REQUIRED_FIELDS", "name_id"),
		PhoneCountry:   envOr("INTAKE_PHONE_COUNTRY", "IL"),
		SessionTTL:     envDuration("INTAKE_SESSION_TTL", 30*time.Minute),
		RedisURL:       os.Getenv("INTAKE_REDIS_URL"),
		PostgresDSN:    os.Getenv("INTAKE_POSTGRES_DSN"),
		KafkaBrokers:   os.Getenv("INTAKE_KAFKA_BROKERS"),
		KafkaTopic:     envOr("INTAKE_KAFKA_TOPIC", "intake.submissions"),
		Schema:         schemaFromEnv(),
	}
	return cfg
}

func schemaFromEnv() catalog.Schema {
	return catalog.Schema{
		Boards: catalog.Boards{
			Projects:       envBoard("INTAKE_BOARD_PROJECTS", 2102791281),
			Units:          envBoard("INTAKE_BOARD_UNITS", 2102791521),
			Communications: envBoard("INTAKE_BOARD_COMMUNICATIONS", 5084313857),
			Buyers:         envBoard("INTAKE_BOARD_BUYERS", 5088248229),
		},
		Columns: catalog.Columns{
			ProjectBuildings:  envColumn("INTAKE_COL_PROJECT_BUILDINGS", "board_relation_mkxw7hzd"),
			ProjectStorage:    envColumn("INTAKE_COL_PROJECT_STORAGE", "board_relation_mkxn3vzy"),
			ProjectParking:    envColumn("INTAKE_COL_PROJECT_PARKING", "board_relation_mkxn2cv3"),
			ProjectCommercial: envColumn("INTAKE_COL_PROJECT_COMMERCIAL", "board_relation_mkxnfnv"),

			BuildingApartments:  envColumn("INTAKE_COL_BUILDING_APARTMENTS", "board_relation_mky2kp4"),
			ApartmentNumberText: envColumn("INTAKE_COL_APARTMENT_NUMBER", "text_mkx68kpr"),

			TargetProject:    envColumn("INTAKE_COL_TARGET_PROJECT", "board_relation_mkxndhvh"),
			TargetBuilding:   envColumn("INTAKE_COL_TARGET_BUILDING", "board_relation_mkxnybfq"),
			TargetStorage:    envColumn("INTAKE_COL_TARGET_STORAGE", "board_relation_mkxn8bvt"),
			TargetParking:    envColumn("INTAKE_COL_TARGET_PARKING", "board_relation_mkxnbxjg"),
			TargetCommercial: envColumn("INTAKE_COL_TARGET_COMMERCIAL", "board_relation_mkxn88c0"),
			TargetBuyers:     envColumn("INTAKE_COL_TARGET_BUYERS", "board_relation_mky2jz2k"),
			TargetAttachment: envColumn("INTAKE_COL_TARGET_ATTACHMENT", ""),

			BuyerIDNumber: envColumn("INTAKE_COL_BUYER_ID_NUMBER", "text_mky2rjvs"),
			BuyerPhone:    envColumn("INTAKE_COL_BUYER_PHONE", "phone_mky21r5b"),
			BuyerEmail:    envColumn("INTAKE_COL_BUYER_EMAIL", "email_mky2q0k3"),
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func envBoard(key string, fallback catalog.BoardID) catalog.BoardID {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return catalog.BoardID(n)
		}
	}
	return fallback
}

func envColumn(key string, fallback catalog.ColumnID) catalog.ColumnID {
	if v := os.Getenv(key); v != "" {
		return catalog.ColumnID(v)
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
