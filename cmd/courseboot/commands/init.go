package commands

import (
	"fmt"

	"git.home.luguber.info/inful/courseboot/internal/config"
)

// InitCmd writes an example configuration file for operators bootstrapping
// a new deployment.
type InitCmd struct {
	Force bool `help:"Overwrite an existing configuration file"`
}

func (i *InitCmd) Run(_ *Global, root *CLI) error {
	if err := config.Init(root.Config, i.Force); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", root.Config)
	return nil
}
