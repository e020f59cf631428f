// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaults(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("main.name", "FieldGuide")
	v.SetDefault("main.log.enabled", true)
	v.SetDefault("main.log.path", "fieldguide.log")

	v.SetDefault("service.baseurl", "http://localhost:5000")
	v.SetDefault("service.timeout", 30*time.Second)
	v.SetDefault("service.catalogttl", 24*time.Hour)
	v.SetDefault("service.imagecachettl", 24*time.Hour)
	v.SetDefault("service.catalogschemaver", 2)

	v.SetDefault("session.historycapsingle", 10)
	v.SetDefault("session.historycapbatch", 20)

	v.SetDefault("datastore.path", "fieldguide.db")
}
