package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"mqttlat/internal/provision"
)

var (
	platformHost string
	platformPort int
	platformUser string
	platformPass string
	deviceName   string
	deviceCert   string
)

// provisionCmd registers a device on the management platform and binds its
// client certificate, so mTLS configurations have something to connect as.
var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Register a device with an X.509 certificate on the platform",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := setupLog()

		c := provision.NewClient(platformHost, platformPort, log)
		if err := c.Login(cmd.Context(), platformUser, platformPass); err != nil {
			return err
		}
		id, err := c.CreateDeviceWithCertificate(cmd.Context(), deviceName, deviceCert)
		if err != nil {
			return err
		}
		fmt.Printf("✅ Device %q provisioned (id %s)\n", deviceName, id)
		return nil
	},
}

func init() {
	provisionCmd.Flags().StringVar(&platformHost, "platform-host", "localhost", "Device platform host")
	provisionCmd.Flags().IntVar(&platformPort, "platform-port", 8081, "Device platform REST port")
	provisionCmd.Flags().StringVar(&platformUser, "username", "tenant@thingsboard.org", "Platform login")
	provisionCmd.Flags().StringVar(&platformPass, "password", "tenant", "Platform password")
	provisionCmd.Flags().StringVar(&deviceName, "device", "", "Device name to create")
	provisionCmd.Flags().StringVar(&deviceCert, "cert", "", "PEM certificate to bind as device credentials")
	provisionCmd.MarkFlagRequired("device")
	provisionCmd.MarkFlagRequired("cert")
}
