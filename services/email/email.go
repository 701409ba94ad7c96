package emailsvc

import (
	"github.com/trezcool/elimu/core"
)

// New returns the email service selected by conf.Email.Backend.
func New(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Email.Backend == core.EmailSendgrid {
		return NewSendgridService(conf, logger)
	}
	return NewConsoleService(conf, logger)
}
