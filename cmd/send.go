package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kilianp07/smartcharge/config"
	coremqtt "github.com/kilianp07/smartcharge/core/mqtt"
	"github.com/kilianp07/smartcharge/infra/mqtt"
	"github.com/kilianp07/smartcharge/infra/ocpp"
)

var (
	sendFile    string
	sendTimeout time.Duration
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Charging profile commands",
}

var profileSendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send SetChargingProfile requests to a running service over MQTT",
	RunE:  runProfileSend,
}

func init() {
	profileSendCmd.Flags().StringVarP(&sendFile, "file", "f", "", "JSON or YAML list of charging profiles")
	profileSendCmd.Flags().DurationVar(&sendTimeout, "timeout", 5*time.Second, "time to wait for each response")
	_ = profileSendCmd.MarkFlagRequired("file")
	profileCmd.AddCommand(profileSendCmd)
	rootCmd.AddCommand(profileCmd)
}

func runProfileSend(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	profiles, err := loadProfiles(sendFile)
	if err != nil {
		return err
	}
	mcfg := cfg.MQTT
	mcfg.ClientID = fmt.Sprintf("%s-send-%d", mcfg.ClientID, time.Now().UnixNano())
	opts, err := mqtt.NewClientOptions(mcfg)
	if err != nil {
		return err
	}
	cli := paho.NewClient(opts)
	if token := cli.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("connect: %w", token.Error())
	}
	defer cli.Disconnect(250)

	topic := coremqtt.RequestTopic(mcfg.TopicPrefix, cfg.ChargePoint.ID, coremqtt.SetChargingProfileTopic)
	responses := make(chan profileResponse, len(profiles))
	if token := cli.Subscribe(topic+coremqtt.ResponseSuffix, 1, collectResponses(responses)); token.Wait() && token.Error() != nil {
		return fmt.Errorf("subscribe: %w", token.Error())
	}

	for _, p := range profiles {
		id := uuid.NewString()
		payload, err := json.Marshal(struct {
			MessageID string `json:"messageId"`
			Payload   any    `json:"payload"`
		}{id, ocpp.ProfileToOCPP(p)})
		if err != nil {
			return err
		}
		if token := cli.Publish(topic, 1, false, payload); token.Wait() && token.Error() != nil {
			return fmt.Errorf("publish profile %d: %w", p.ProfileID, token.Error())
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), sendTimeout)
		status, reason, err := waitResponse(ctx, responses, id)
		cancel()
		if err != nil {
			return fmt.Errorf("profile %d: %w", p.ProfileID, err)
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "profile %d on connector %d: %s %s\n", p.ProfileID, p.ConnectorID, status, reason)
	}
	return nil
}

type profileResponse struct {
	MessageID string `json:"messageId"`
	Status    string `json:"status"`
	Reason    string `json:"reason,omitempty"`
}

// collectResponses forwards decoded responses without blocking paho's router.
// The response topic is shared by every client of the charge point, so
// replies nobody waits for are dropped once the buffer is full.
func collectResponses(ch chan<- profileResponse) paho.MessageHandler {
	return func(_ paho.Client, msg paho.Message) {
		var r profileResponse
		if json.Unmarshal(msg.Payload(), &r) != nil {
			return
		}
		select {
		case ch <- r:
		default:
		}
	}
}

func waitResponse(ctx context.Context, ch <-chan profileResponse, id string) (string, string, error) {
	for {
		select {
		case <-ctx.Done():
			return "", "", fmt.Errorf("no response: %w", ctx.Err())
		case r := <-ch:
			if r.MessageID == id {
				return r.Status, r.Reason, nil
			}
		}
	}
}
