package backendfake

import (
	"encoding/json"
	"net/http"

	"github.com/jrsteele09/tramcan-session/backend"
	"github.com/jrsteele09/tramcan-session/tenants"
	"github.com/jrsteele09/tramcan-session/token"
	"github.com/jrsteele09/tramcan-session/users"
)

func (s *Server) initRoutes() {
	public := s.APIMiddleware()
	session := s.APIMiddleware(s.RequireToken(token.KindSession))
	generic := s.APIMiddleware(s.RequireToken(token.KindGeneric))

	s.RegisterRouteFunc("POST "+backend.RouteTenantLogin, ChainMiddleware(s.TenantLoginHandler(), public...))
	s.RegisterRouteFunc("GET "+backend.RouteMyStations, ChainMiddleware(s.MyStationsHandler(), session...))
	s.RegisterRouteFunc("POST "+backend.RouteSelectStation, ChainMiddleware(s.SelectStationHandler(), session...))
	s.RegisterRouteFunc("POST "+backend.RouteSwitchStation, ChainMiddleware(s.SwitchStationHandler(), session...))
	s.RegisterRouteFunc("POST "+backend.RouteStationUserLogin, ChainMiddleware(s.StationUserLoginHandler(), session...))

	s.RegisterRouteFunc("POST "+backend.RouteLogin, ChainMiddleware(s.LoginHandler(), public...))
	s.RegisterRouteFunc("POST "+backend.RouteLogout, ChainMiddleware(s.LogoutHandler(), generic...))
	s.RegisterRouteFunc("GET "+backend.RouteValidate, ChainMiddleware(s.ValidateHandler(), generic...))
}

func (s *Server) TenantLoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req backend.TenantLoginRequest
		if !decode(w, r, &req) {
			return
		}
		if req.MaKhachHang == "" || req.Password == "" {
			writeFail(w, http.StatusBadRequest, "maKhachHang and password are required")
			return
		}

		tenant, err := s.tenants.Get(req.MaKhachHang)
		if err != nil || !users.CheckPasswordHash(req.Password, tenant.PasswordHash) {
			writeFail(w, http.StatusBadRequest, "invalid customer code or password")
			return
		}
		if tenant.Blocked {
			writeFail(w, http.StatusForbidden, "customer account is blocked")
			return
		}

		sessionToken, _, err := s.minter.Mint(token.MintRequest{
			Kind: token.KindSession, Subject: tenant.MaKhachHang, Tenant: tenant.MaKhachHang,
		})
		if err != nil {
			writeFail(w, http.StatusInternalServerError, "could not issue session")
			return
		}
		writeOK(w, backend.TenantLoginData{
			SessionToken: sessionToken,
			KhachHang:    tenant.Customer,
			TramCans:     s.activeStations(tenant),
		})
	}
}

func (s *Server) MyStationsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant, ok := s.tenantFor(w, r)
		if !ok {
			return
		}
		writeOK(w, s.activeStations(tenant))
	}
}

func (s *Server) SelectStationHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant, station, ok := s.stationFromRequest(w, r)
		if !ok {
			return
		}
		claims := claimsFrom(r)
		s.lock.Lock()
		s.selection[claims.ID] = station.ID
		s.lock.Unlock()

		writeOK(w, backend.StationScopeData{KhachHang: tenant.Customer, SelectedStation: station})
	}
}

func (s *Server) SwitchStationHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant, station, ok := s.stationFromRequest(w, r)
		if !ok {
			return
		}

		sessionToken, claims, err := s.minter.Mint(token.MintRequest{
			Kind: token.KindSession, Subject: tenant.MaKhachHang, Tenant: tenant.MaKhachHang, StationID: station.ID,
		})
		if err != nil {
			writeFail(w, http.StatusInternalServerError, "could not issue session")
			return
		}
		// The old token is scoped to the previous station.
		if err := s.minter.Revoke(rawTokenFrom(r)); err != nil {
			s.logger.Warn().Err(err).Msg("could not revoke previous session token")
		}
		s.lock.Lock()
		s.selection[claims.ID] = station.ID
		s.lock.Unlock()

		writeOK(w, backend.StationScopeData{
			SessionToken:    sessionToken,
			KhachHang:       tenant.Customer,
			SelectedStation: station,
		})
	}
}

func (s *Server) StationUserLoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req backend.StationUserLoginRequest
		if !decode(w, r, &req) {
			return
		}
		if req.NvID == "" || req.Password == "" {
			writeFail(w, http.StatusBadRequest, "nvId and password are required")
			return
		}

		claims := claimsFrom(r)
		stationID := claims.StationID
		if stationID == 0 {
			s.lock.Lock()
			stationID = s.selection[claims.ID]
			s.lock.Unlock()
		}
		if stationID == 0 {
			writeFail(w, http.StatusBadRequest, "no station selected")
			return
		}

		user, err := s.stationUsers.GetStationUser(claims.Tenant, req.NvID)
		if err != nil || !users.CheckPasswordHash(req.Password, user.PasswordHash) {
			writeFail(w, http.StatusBadRequest, "invalid staff id or password")
			return
		}
		if user.Blocked || !user.CanOperate(stationID) {
			writeFail(w, http.StatusForbidden, "staff member is not assigned to this station")
			return
		}

		userToken, _, err := s.minter.Mint(token.MintRequest{
			Kind: token.KindStationUser, Subject: user.NvID, Tenant: claims.Tenant, StationID: stationID,
		})
		if err != nil {
			writeFail(w, http.StatusInternalServerError, "could not issue token")
			return
		}
		writeOK(w, backend.StationUserData{
			NvID:        user.NvID,
			TenNhanVien: user.TenNhanVien,
			VaiTro:      user.VaiTro,
			Token:       userToken,
		})
	}
}

func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req backend.LoginRequest
		if !decode(w, r, &req) {
			return
		}
		user, err := s.users.GetByUsername(req.Username)
		if err != nil || !users.CheckPasswordHash(req.Password, user.PasswordHash) {
			writeFail(w, http.StatusBadRequest, "invalid username or password")
			return
		}
		if user.Blocked {
			writeFail(w, http.StatusForbidden, "account is blocked")
			return
		}

		authToken, _, err := s.minter.Mint(token.MintRequest{Kind: token.KindGeneric, Subject: user.ID})
		if err != nil {
			writeFail(w, http.StatusInternalServerError, "could not issue token")
			return
		}
		writeOK(w, backend.LoginData{
			Token: authToken,
			User:  backend.User{ID: user.ID, Username: user.Username, FullName: user.FullName, Role: user.Role},
		})
	}
}

func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.minter.Revoke(rawTokenFrom(r)); err != nil {
			s.logger.Warn().Err(err).Msg("logout revoke failed")
		}
		writeJSON(w, http.StatusOK, backend.Envelope[json.RawMessage]{Success: true, Message: "logged out"})
	}
}

func (s *Server) ValidateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeOK(w, backend.ValidateData{Valid: true})
	}
}

func (s *Server) tenantFor(w http.ResponseWriter, r *http.Request) (*tenants.Tenant, bool) {
	tenant, err := s.tenants.Get(claimsFrom(r).Tenant)
	if err != nil {
		writeFail(w, http.StatusUnauthorized, "unknown customer")
		return nil, false
	}
	if tenant.Blocked {
		writeFail(w, http.StatusForbidden, "customer account is blocked")
		return nil, false
	}
	return tenant, true
}

func (s *Server) stationFromRequest(w http.ResponseWriter, r *http.Request) (*tenants.Tenant, tenants.Station, bool) {
	var req backend.StationRequest
	if !decode(w, r, &req) {
		return nil, tenants.Station{}, false
	}
	tenant, ok := s.tenantFor(w, r)
	if !ok {
		return nil, tenants.Station{}, false
	}
	station, found := s.activeStations(tenant).Find(req.StationID)
	if !found {
		writeFail(w, http.StatusNotFound, "station not found for this customer")
		return nil, tenants.Station{}, false
	}
	return tenant, station, true
}

func (s *Server) activeStations(tenant *tenants.Tenant) tenants.Stations {
	out := make(tenants.Stations, 0, len(tenant.Stations))
	for _, st := range tenant.Stations {
		if s.isActive(st.ID) {
			out = append(out, st)
		}
	}
	return out
}

func decode(w http.ResponseWriter, r *http.Request, out any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(out); err != nil {
		writeFail(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func writeOK[T any](w http.ResponseWriter, data T) {
	writeJSON(w, http.StatusOK, backend.OK(data))
}

func writeFail(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, backend.Fail(message))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
