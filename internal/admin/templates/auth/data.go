package auth

// LoginPageData encapsulates rendering state for the console login screen.
type LoginPageData struct {
	Username  string
	Message   string
	Error     string
	Remember  bool
	Next      string
	LoginPath string
	// FirebaseEnabled shows the ID token field used by the Firebase sign-in flow.
	FirebaseEnabled bool
}

// NoAccessPageData is shown to signed-in users whose role grants no console access.
type NoAccessPageData struct {
	Name      string
	RoleLabel string
	LogoutURL string
}
