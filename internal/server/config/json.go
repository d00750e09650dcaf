package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/authkeeper/internal/flagx"
	"github.com/dmitrijs2005/authkeeper/internal/timex"
)

// JsonConfig mirrors Config for JSON files. Durations use timex.Duration so
// both "168h" and integer nanoseconds are accepted. Absent keys leave the
// current value untouched.
type JsonConfig struct {
	HTTPAddr            string         `json:"http_addr"`
	GRPCAddr            string         `json:"grpc_addr"`
	Environment         string         `json:"environment"`
	StorageDriver       string         `json:"storage_driver"`
	MongoURI            string         `json:"mongo_uri"`
	MongoDatabase       string         `json:"mongo_database"`
	DatabaseDSN         string         `json:"database_dsn"`
	SecretKey           string         `json:"secret_key"`
	SessionTTL          timex.Duration `json:"session_ttl"`
	VerificationTTL     timex.Duration `json:"verification_ttl"`
	ResetTTL            timex.Duration `json:"reset_ttl"`
	BcryptCost          int            `json:"bcrypt_cost"`
	ClientURL           string         `json:"client_url"`
	ConcealUnknownEmail *bool          `json:"conceal_unknown_email"`
	MailTransport       string         `json:"mail_transport"`
	MailFrom            string         `json:"mail_from"`
	SMTPHost            string         `json:"smtp_host"`
	SMTPPort            int            `json:"smtp_port"`
	SMTPUser            string         `json:"smtp_user"`
	SMTPPassword        string         `json:"smtp_password"`
	NATSURL             string         `json:"nats_url"`
	NATSSubject         string         `json:"nats_subject"`
	S3Bucket            string         `json:"templates_s3_bucket"`
	S3Prefix            string         `json:"templates_s3_prefix"`
	S3Region            string         `json:"templates_s3_region"`
	S3BaseEndpoint      string         `json:"templates_s3_endpoint"`
	S3RootUser          string         `json:"templates_s3_user"`
	S3RootPassword      string         `json:"templates_s3_password"`
	OTLPEndpoint        string         `json:"otlp_endpoint"`
	LogLevel            string         `json:"log_level"`
}

// parseJSON overlays the file named by -c/-config, if any.
func parseJSON(config *Config, args []string) error {
	path := flagx.ConfigPath(args)
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	setString(&config.HTTPAddr, c.HTTPAddr)
	setString(&config.GRPCAddr, c.GRPCAddr)
	setString(&config.Environment, c.Environment)
	setString(&config.StorageDriver, c.StorageDriver)
	setString(&config.MongoURI, c.MongoURI)
	setString(&config.MongoDatabase, c.MongoDatabase)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	if c.SessionTTL.IsSet() {
		config.SessionTTL = c.SessionTTL.Duration
	}
	if c.VerificationTTL.IsSet() {
		config.VerificationTTL = c.VerificationTTL.Duration
	}
	if c.ResetTTL.IsSet() {
		config.ResetTTL = c.ResetTTL.Duration
	}
	if c.BcryptCost != 0 {
		config.BcryptCost = c.BcryptCost
	}
	setString(&config.ClientURL, c.ClientURL)
	if c.ConcealUnknownEmail != nil {
		config.ConcealUnknownEmail = *c.ConcealUnknownEmail
	}
	setString(&config.Mail.Transport, c.MailTransport)
	setString(&config.Mail.From, c.MailFrom)
	setString(&config.Mail.SMTPHost, c.SMTPHost)
	if c.SMTPPort != 0 {
		config.Mail.SMTPPort = c.SMTPPort
	}
	setString(&config.Mail.SMTPUser, c.SMTPUser)
	setString(&config.Mail.SMTPPassword, c.SMTPPassword)
	setString(&config.Mail.NATSURL, c.NATSURL)
	setString(&config.Mail.NATSSubject, c.NATSSubject)
	setString(&config.TemplateS3.Bucket, c.S3Bucket)
	setString(&config.TemplateS3.Prefix, c.S3Prefix)
	setString(&config.TemplateS3.Region, c.S3Region)
	setString(&config.TemplateS3.BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.TemplateS3.RootUser, c.S3RootUser)
	setString(&config.TemplateS3.RootPassword, c.S3RootPassword)
	setString(&config.OTLPEndpoint, c.OTLPEndpoint)
	setString(&config.LogLevel, c.LogLevel)
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
