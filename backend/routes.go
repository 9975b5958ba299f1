package backend

// Backend route paths shared by the client and the fake server.
const (
	// Tenant / station tier
	RouteTenantLogin      = "/tramcan/auth/login"
	RouteMyStations       = "/tramcan/my-stations"
	RouteSelectStation    = "/tramcan/select-station"
	RouteSwitchStation    = "/tramcan/switch-station"
	RouteStationUserLogin = "/tramcan/station-user/login"

	// Generic resource API
	RouteLogin    = "/auth/login"
	RouteLogout   = "/auth/logout"
	RouteValidate = "/auth/validate"
)
