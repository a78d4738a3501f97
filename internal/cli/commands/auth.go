package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/codyseavey/cardvault/internal/collection"
)

type signupCmd struct{}

func (signupCmd) Name() string        { return "signup" }
func (signupCmd) Description() string { return "Create an account and sign in" }
func (signupCmd) Usage() string       { return "signup <email> <password>" }

func (signupCmd) Run(ctx context.Context, app *App, args []string) error {
	if len(args) != 2 {
		return ErrUsage
	}
	session, err := app.Client.SignUp(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	fmt.Fprintf(Out, "Signed up as %s\n", session.User.Email)
	return nil
}

type loginCmd struct{}

func (loginCmd) Name() string        { return "login" }
func (loginCmd) Description() string { return "Sign in and save the session" }
func (loginCmd) Usage() string       { return "login <email> <password>" }

func (loginCmd) Run(ctx context.Context, app *App, args []string) error {
	if len(args) != 2 {
		return ErrUsage
	}
	session, err := app.Client.SignIn(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	fmt.Fprintf(Out, "Signed in as %s (session expires %s)\n", session.User.Email, session.ExpiresAt.Local().Format(time.RFC822))
	return nil
}

type logoutCmd struct{}

func (logoutCmd) Name() string        { return "logout" }
func (logoutCmd) Description() string { return "Sign out and forget the saved session" }
func (logoutCmd) Usage() string       { return "logout" }

func (logoutCmd) Run(ctx context.Context, app *App, args []string) error {
	if len(args) != 0 {
		return ErrUsage
	}
	if err := app.Client.SignOut(ctx); err != nil {
		return err
	}
	fmt.Fprintln(Out, "Signed out")
	return nil
}

type whoamiCmd struct{}

func (whoamiCmd) Name() string        { return "whoami" }
func (whoamiCmd) Description() string { return "Show the signed-in user" }
func (whoamiCmd) Usage() string       { return "whoami" }

func (whoamiCmd) Run(ctx context.Context, app *App, args []string) error {
	if len(args) != 0 {
		return ErrUsage
	}
	user, err := app.Client.GetUser(ctx)
	if err != nil {
		return err
	}
	if user == nil {
		return collection.ErrAuthRequired
	}
	fmt.Fprintf(Out, "%s (%s)\n", user.Email, user.ID)
	return nil
}

type passwdCmd struct{}

func (passwdCmd) Name() string        { return "passwd" }
func (passwdCmd) Description() string { return "Change your password and sign out other sessions" }
func (passwdCmd) Usage() string       { return "passwd <new-password>" }

func (passwdCmd) Run(ctx context.Context, app *App, args []string) error {
	if len(args) != 1 {
		return ErrUsage
	}
	user, err := app.Client.UpdatePassword(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(Out, "Password updated for %s\n", user.Email)
	return nil
}

func init() {
	RegisterCmd(passwdCmd{})
	RegisterCmd(signupCmd{})
	RegisterCmd(loginCmd{})
	RegisterCmd(logoutCmd{})
	RegisterCmd(whoamiCmd{})
}
