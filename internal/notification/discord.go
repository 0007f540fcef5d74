package notification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/glacier-guardian/glacier-guardian-api-poc/internal/properties"
)

type DiscordMessage struct {
	Embeds []DiscordEmbed `json:"embeds"`
}

type DiscordEmbed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       int    `json:"color"`
}

func send(url, title, description string, color int) error {
	if url == "" {
		return nil
	}
	message := DiscordMessage{
		Embeds: []DiscordEmbed{
			{
				Title:       title,
				Description: description,
				Color:       color,
			},
		},
	}

	payload, err := json.Marshal(message)
	if err != nil {
		return err
	}

	resp, err := http.Post(url, "application/json", bytes.NewBuffer(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to send Discord notification, status code: %d", resp.StatusCode)
	}

	return nil
}

func SendDiscordErrorNotification(errorMessage string) error {
	return send(properties.DiscordErrorNotificationUrl(),
		"🚨 Error Notification",
		fmt.Sprintf("An error occurred: %s", errorMessage),
		16711680) // red
}

func SendDiscordWarnNotification(warnMessage string) error {
	return send(properties.DiscordWarnNotificationUrl(),
		"⚠️ Warning Notification",
		warnMessage,
		16776960) // yellow
}

func SendDiscordSuccessNotification(successMessage string) error {
	return send(properties.DiscordSuccessNotificationUrl(),
		"✅ Success Notification",
		successMessage,
		65280) // green
}
