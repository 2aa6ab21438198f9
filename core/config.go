package core

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var Conf *viper.Viper

func init() {
	Conf = viper.New()

	// defaults
	Conf.SetTypeByDefaultValue(true)
	Conf.SetDefault("debug", true)
	Conf.SetDefault("appName", "Darasa")
	Conf.SetDefault("defaultFromEmail", "noreply@localhost")
	Conf.SetDefault("sendgridApiKey", "")

	// RecordStore API
	Conf.SetDefault("recordstore.baseURL", "http://localhost:8501")
	Conf.SetDefault("recordstore.timeout", 10*time.Second)
	Conf.SetDefault("recordstore.token", "")
	Conf.SetDefault("demoMode", false)

	// roster reconciliation
	Conf.SetDefault("roster.pageSize", 20)

	// grade autosave
	Conf.SetDefault("grades.debounceDelay", 30*time.Second)
	Conf.SetDefault("grades.pollInterval", 60*time.Second)

	env := os.Getenv("ENV") // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case strings.ToUpper("TEST"):
		Conf.SetDefault("testMode", true)
	}
	Conf.SetDefault("env", env)
	Conf.SetDefault("rollbarToken", "")
	Conf.SetDefault("build", "")
	Conf.SetEnvPrefix(env)
	Conf.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(Getwd(), "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	Conf.AutomaticEnv()
}
