package auth

import (
	"fmt"
	"io"
	"strings"
)

// ShowSessionTokenGuide explains how to copy the SMSESS cookie out of a
// logged-in browser session.
func ShowSessionTokenGuide(w io.Writer) {
	rule := strings.Repeat("=", 72)
	p := func(format string, args ...interface{}) { fmt.Fprintf(w, format+"\n", args...) }

	p(rule)
	p("📚 SMUGMUG SESSION TOKEN GUIDE")
	p(rule)
	p("")
	p("A password login is the simplest option. Use a session token instead when")
	p("your account uses two-factor authentication or a social login.")
	p("")
	p("🌐 STEP 1: Log in")
	p("   - Open https://www.smugmug.com in your browser and sign in")
	p("   - Visit your own site (https://<username>.smugmug.com) once")
	p("")
	p("🔧 STEP 2: Open Developer Tools")
	p("   • Chrome/Edge/Brave: F12 or Ctrl+Shift+I (Cmd+Option+I on Mac)")
	p("   • Firefox: F12, then the Storage tab")
	p("   • Safari: enable the Develop menu, then Cmd+Option+I")
	p("")
	p("🍪 STEP 3: Copy the cookie")
	p("   - Application (or Storage) > Cookies > https://www.smugmug.com")
	p("   - Find the cookie named %s", "SMSESS")
	p("   - Copy its Value column, nothing else")
	p("")
	p("⚠️  The token grants full access to your account until you log out of")
	p("   the browser. Never share it.")
	p(rule)
}
