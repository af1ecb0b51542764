// Package autoload configures the global logger from LOG_* variables on
// import.
package autoload

import (
	"github.com/rs/zerolog/log"
	configx "github.com/tanpawarit/library-mail-agent/pkg/config"
	logx "github.com/tanpawarit/library-mail-agent/pkg/logger"
)

func init() {
	conf, err := configx.New[logx.Config]("LOG")
	if err != nil {
		logx.Init()
		log.Warn().Err(err).Msg("logger config invalid, using defaults")
		return
	}
	logx.Init(*conf)
}
