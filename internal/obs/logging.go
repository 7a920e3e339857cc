package obs

import (
	"os"

	log "github.com/sirupsen/logrus"
)

// SetupLogging configures the package-level logrus logger. Unknown levels fall back to info.
func SetupLogging(level, format, service string) {
	if format == "text" {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	} else {
		log.SetFormatter(&log.JSONFormatter{})
	}
	log.SetOutput(os.Stdout)

	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)

	log.WithFields(log.Fields{"service": service, "level": lvl.String()}).Debug("logger configured")
}
