package handler

import (
	"github.com/jozu2/pianogod-server/internal/app/relay"
	"github.com/jozu2/pianogod-server/internal/configs"
	"github.com/jozu2/pianogod-server/internal/pkg/sessiontoken"
)

type AppDeps struct {
	Hub         *relay.Hub
	Coordinator *relay.Coordinator
	Verifier    *sessiontoken.Verifier
	Config      *configs.AppConfig
}
