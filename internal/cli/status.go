package cli

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jrsteele09/tramcan-session/internal/utils"
	"github.com/jrsteele09/tramcan-session/token"
	"github.com/spf13/cobra"
)

func newStatusCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the session kept on this device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			state := s.app.Controller.State()

			fmt.Fprintf(w, "Level:    %s\n", state.Level)
			fmt.Fprintf(w, "Screen:   %s\n", state.Route())
			switch {
			case state.TenantInfo != nil:
				fmt.Fprintf(w, "Customer: %s (%s)\n", state.TenantInfo.KhachHang.TenKhachHang, state.TenantInfo.KhachHang.MaKhachHang)
				st := state.TenantInfo.SelectedStation
				fmt.Fprintf(w, "Station:  %s (%d)\n", st.DisplayName(), st.ID)
				if note := utils.Value(st.MoTa); note != "" {
					fmt.Fprintf(w, "          %s\n", note)
				}
			case state.TenantSession != nil:
				fmt.Fprintf(w, "Customer: %s\n", state.TenantSession.KhachHang.MaKhachHang)
			}
			printExpiry(w, "Session:  ", s.app.Sessions.SessionToken())

			if state.StationUser != nil {
				fmt.Fprintf(w, "Staff:    %s (%s)\n", state.StationUser.TenNhanVien, state.StationUser.VaiTro)
				printExpiry(w, "          ", state.StationUser.Token)
			}
			if state.User != nil {
				fmt.Fprintf(w, "API user: %s\n", state.User.Username)
			}
			if state.GenericAuth {
				printExpiry(w, "API:      ", s.app.Sessions.AuthToken())
			}
			return nil
		},
	}
}

// printExpiry prints a local hint only; the backend decides validity.
func printExpiry(w io.Writer, label, raw string) {
	if raw == "" {
		return
	}
	claims, err := token.Inspect(raw)
	switch {
	case errors.Is(err, token.ErrOpaque):
		fmt.Fprintf(w, "%stoken held\n", label)
	case err != nil:
		fmt.Fprintf(w, "%sunreadable token\n", label)
	case claims.ExpiresAt.IsZero():
		fmt.Fprintf(w, "%stoken held, no expiry\n", label)
	case claims.Expired(time.Now()):
		fmt.Fprintf(w, "%stoken expired at %s\n", label, claims.ExpiresAt.Format(time.RFC3339))
	default:
		fmt.Fprintf(w, "%stoken valid until %s\n", label, claims.ExpiresAt.Format(time.RFC3339))
	}
}
