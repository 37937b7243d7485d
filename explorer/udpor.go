package explorer

import (
	"context"

	"github.com/sirupsen/logrus"

	"mcheck/driver"
	"mcheck/transition"
)

// Exploration over an unfolding of the checked program.
//
// Only the interface exists. Run fails with ErrUDPORUnsupported without touching the driver.
type UDPOR struct {
	drv driver.Driver
	log logrus.FieldLogger
}

func NewUDPOR(drv driver.Driver, opts ...Option) (*UDPOR, error) {
	o, err := parseOptions(opts)
	if err != nil {
		return nil, err
	}
	return &UDPOR{
		drv: drv,
		log: o.log.WithField("explorer", "udpor"),
	}, nil
}

func (u *UDPOR) Run(ctx context.Context) (*Result, error) {
	u.log.Error("UDPOR exploration requested")
	return nil, ErrUDPORUnsupported
}

func (u *UDPOR) RecordTrace() transition.RecordTrace {
	return transition.RecordTrace{}
}

func (u *UDPOR) TextualTrace() []string {
	return []string{}
}
