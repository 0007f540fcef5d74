package properties

import (
	"os"
	"strings"
)

func RootPath() string {
	return os.Getenv("ROOT_PATH")
}

// DefaultCRS is the polar stereographic projection used for the Greenland
// study regions.
const DefaultCRS = "EPSG:3413"

type Color struct {
	R, G, B uint8
}

// MaskColorMap tints quicklook renderings of the derived mask bands.
var MaskColorMap = map[string]Color{
	"clouds":    {255, 255, 255},
	"shadows":   {60, 60, 120},
	"cloudmask": {255, 0, 0},
}

func ComputeAPIURL() string {
	return os.Getenv("COMPUTE_API_URL")
}

func ComputeTokenURL() string {
	return os.Getenv("COMPUTE_TOKEN_URL")
}

// ComputeClientIDs returns the configured client ids. Several credentials can
// be rotated through by providing a comma separated list.
func ComputeClientIDs() []string {
	return splitNonEmpty(os.Getenv("COMPUTE_CLIENT_ID"))
}

func ComputeClientSecrets() []string {
	return splitNonEmpty(os.Getenv("COMPUTE_CLIENT_SECRET"))
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func DiscordErrorNotificationUrl() string {
	return os.Getenv("DISCORD_ERROR_NOTIFICATION_URL")
}
func DiscordSuccessNotificationUrl() string {
	return os.Getenv("DISCORD_SUCCESS_NOTIFICATION_URL")
}
func DiscordWarnNotificationUrl() string {
	return os.Getenv("DISCORD_WARN_NOTIFICATION_URL")
}
