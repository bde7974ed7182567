package main

import (
	"bufio"
	"fmt"
	"strings"

	"channah-support-chat/internal/chat/credential"
	"channah-support-chat/internal/dto"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newLoginCommand(a *app) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.prompt(cmd, "Email", &email); err != nil {
				return err
			}
			if err := a.prompt(cmd, "Password", &password); err != nil {
				return err
			}
			resp, err := a.api("").Login(cmd.Context(), email, password)
			if err != nil {
				return errors.Wrap(err, "login")
			}
			return a.saveAuth(resp)
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	return cmd
}

func newRegisterCommand(a *app) *cobra.Command {
	var req dto.RegisterRequest

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, field := range []struct {
				label string
				value *string
			}{{"Name", &req.Name}, {"Email", &req.Email}, {"Password", &req.Password}} {
				if err := a.prompt(cmd, field.label, field.value); err != nil {
					return err
				}
			}
			resp, err := a.api("").Register(cmd.Context(), req)
			if err != nil {
				return errors.Wrap(err, "register")
			}
			return a.saveAuth(resp)
		},
	}
	cmd.Flags().StringVar(&req.Name, "name", "", "display name")
	cmd.Flags().StringVar(&req.Email, "email", "", "account email")
	cmd.Flags().StringVar(&req.Password, "password", "", "account password, at least 8 characters")
	cmd.Flags().StringVar(&req.Role, "role", "customer", "customer or agent")
	return cmd
}

func newLogoutCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.creds.Clear(); err != nil {
				return err
			}
			a.printf("Signed out.\n")
			return nil
		},
	}
}

func (a *app) saveAuth(resp dto.AuthResponse) error {
	cred := credential.Credential{
		Token:     resp.Token,
		UserID:    resp.User.UserID,
		Email:     resp.User.Email,
		Name:      resp.User.Name,
		Role:      resp.User.Role,
		BaseURL:   a.cfg.APIURL,
		ExpiresAt: resp.ExpiresAt,
	}
	if err := a.creds.Save(cred); err != nil {
		return err
	}
	a.printf("Signed in as %s (%s).\n", cred.Email, cred.Role)
	return nil
}

// prompt reads a line from stdin when the flag was left empty.
func (a *app) prompt(cmd *cobra.Command, label string, value *string) error {
	if strings.TrimSpace(*value) != "" {
		return nil
	}
	if a.in == nil {
		a.in = bufio.NewReader(cmd.InOrStdin())
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%s: ", label)
	line, err := a.in.ReadString('\n')
	if err != nil && line == "" {
		return errors.Wrapf(err, "read %s", strings.ToLower(label))
	}
	*value = strings.TrimSpace(line)
	if *value == "" {
		return errors.Errorf("%s is required", strings.ToLower(label))
	}
	return nil
}
