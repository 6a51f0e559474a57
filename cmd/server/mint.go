package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	router "github.com/dkeye/Camlink/internal/adapters/http"
	"github.com/spf13/cobra"
)

var errMintStatus = errors.New("server refused to mint a session")

type mintResponse struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

// newMintCmd asks a running server for a new session and writes the link's
// QR code. Ids are only valid on the server that minted them.
func newMintCmd() *cobra.Command {
	var (
		server string
		out    string
	)
	cmd := &cobra.Command{
		Use:   "mint",
		Short: "Create a session on a running server and write its QR code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			res, err := mint(ctx, server)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "session: %s\nurl:     %s\n", res.SessionID, res.URL)
			if out == "" {
				return nil
			}
			png, err := router.QRCode(res.URL)
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, png, 0o644); err != nil {
				return fmt.Errorf("write qr: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "qr:      %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVar(&server, "server", "http://localhost:8080", "base URL of a running camlink server")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the QR code PNG here")
	return cmd
}

func mint(ctx context.Context, server string) (mintResponse, error) {
	url := strings.TrimRight(server, "/") + "/api/sessions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return mintResponse{}, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return mintResponse{}, fmt.Errorf("mint: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return mintResponse{}, fmt.Errorf("%w: %s", errMintStatus, resp.Status)
	}
	var res mintResponse
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return mintResponse{}, fmt.Errorf("decode mint response: %w", err)
	}
	return res, nil
}
