package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/jrsteele09/tramcan-session/auth"
	"github.com/jrsteele09/tramcan-session/internal/utils"
	"github.com/jrsteele09/tramcan-session/tenants"
	"github.com/spf13/cobra"
)

func check[T any](res auth.Result[T]) error {
	if res.IsOk() {
		return nil
	}
	return res.Error()
}

func parseStationID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("station id must be a number: %q", arg)
	}
	return id, nil
}

func printStations(w io.Writer, stations tenants.Stations, selected int64) {
	if len(stations) == 0 {
		fmt.Fprintln(w, "No stations.")
		return
	}
	for _, st := range stations {
		marker := " "
		if st.ID == selected {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %-5d %-8s %s", marker, st.ID, st.MaTramCan, st.DisplayName())
		if status := utils.Value(st.TrangThai); status != "" {
			fmt.Fprintf(w, " [%s]", status)
		}
		fmt.Fprintln(w)
	}
}

func newTenantLoginCmd(s *session) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "tenant-login <maKhachHang>",
		Short: "Sign in with the customer account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res := s.app.Controller.TenantLogin(cmd.Context(), args[0], password)
			if err := check(res); err != nil {
				return err
			}
			ts := res.Value()
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s (%s)\n", ts.KhachHang.TenKhachHang, ts.KhachHang.MaKhachHang)
			printStations(cmd.OutOrStdout(), ts.TramCans, 0)
			return nil
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "customer password")
	return cmd
}

func newStationsCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "stations",
		Short: "List the customer's stations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res := s.app.Controller.GetMyStations(cmd.Context())
			if err := check(res); err != nil {
				return err
			}
			var selected int64
			if info := s.app.Controller.TenantInfo(); info != nil {
				selected = info.SelectedStation.ID
			}
			printStations(cmd.OutOrStdout(), res.Value(), selected)
			return nil
		},
	}
}

func newSelectCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "select <stationID>",
		Short: "Choose the station to work at",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseStationID(args[0])
			if err != nil {
				return err
			}
			ctrl := s.app.Controller
			if _, known := ctrl.Stations(); !known {
				// Membership is checked against the list, so load it first.
				if err := check(ctrl.GetMyStations(cmd.Context())); err != nil {
					return err
				}
			}
			if err := check(ctrl.SelectStation(cmd.Context(), s.app.Sessions.SessionToken(), id)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Station: %s\n", ctrl.StationDisplayName())
			return nil
		},
	}
}

func newSwitchCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "switch <stationID>",
		Short: "Move to another station without signing in again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseStationID(args[0])
			if err != nil {
				return err
			}
			if err := check(s.app.Controller.SwitchStation(cmd.Context(), id)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Station: %s\n", s.app.Controller.StationDisplayName())
			return nil
		},
	}
}

func newCheckStationCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "check-station",
		Short: "Check the selected station is still assigned to the customer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res := s.app.Controller.ValidateCurrentStation(cmd.Context())
			if err := check(res); err != nil {
				return err
			}
			if !res.Value() {
				return fmt.Errorf("station %s is no longer available, run logout", s.app.Controller.StationDisplayName())
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Station OK")
			return nil
		},
	}
}

func newStaffLoginCmd(s *session) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "staff-login <nvId>",
		Short: "Sign a staff member in at the selected station",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := check(s.app.Controller.StationUserLogin(cmd.Context(), args[0], password)); err != nil {
				return err
			}
			su := s.app.Controller.StationUser()
			fmt.Fprintf(cmd.OutOrStdout(), "Staff: %s (%s, %s)\n", su.TenNhanVien, su.NvID, su.VaiTro)
			return nil
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "staff password")
	return cmd
}

func newLogoutCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End every session and clear this device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s.app.Controller.Logout(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}
