package cmd

import (
	"fmt"

	"github.com/jon4hz/showtrack/internal/notify/webpush"
	"github.com/spf13/cobra"
)

var generateKeysCmd = &cobra.Command{
	Use:   "generate-vapid-keys",
	Short: "Generate VAPID keys for web push notifications",
	Long: `Generate VAPID keys for web push notifications.

These keys are required to push "favorite loaded" events to browsers that are not connected
over a websocket. Add the generated keys to your configuration file under the webpush section.`,
	RunE: generateVAPIDKeys,
}

func init() {
	rootCmd.AddCommand(generateKeysCmd)
}

func generateVAPIDKeys(cmd *cobra.Command, args []string) error {
	privateKey, publicKey, err := webpush.GenerateVAPIDKeys()
	if err != nil {
		return fmt.Errorf("failed to generate VAPID keys: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Add these to your configuration file:")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "webpush:")
	fmt.Fprintln(out, "  enabled: true")
	fmt.Fprintln(out, "  vapid_email: \"your-email@example.com\"")
	fmt.Fprintf(out, "  private_key: \"%s\"\n", privateKey)
	fmt.Fprintf(out, "  public_key: \"%s\"\n", publicKey)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Note: Keep the private key secure and never share it publicly!")
	return nil
}
