package app

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/nhle/feed2imap/internal/credential"
	"github.com/nhle/feed2imap/internal/model"
)

func (a *App) newDefaultConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "default-config",
		Short: "Print the default configuration",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return model.WriteConfig(a.stdout, model.DefaultAppConfig())
		},
	}
}

func (a *App) newInitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Configure the IMAP account interactively",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return a.runInit()
		},
	}
}

// initForm holds the values edited by the init form.
type initForm struct {
	host     string
	port     string
	username string
	password string
	tls      bool
	folder   string
	name     string
	email    string
}

func newInitForm(cfg *model.AppConfig) *initForm {
	return &initForm{
		host:     cfg.IMAP.Host,
		port:     strconv.Itoa(cfg.IMAP.Port),
		username: cfg.IMAP.Username,
		tls:      cfg.IMAP.TLS,
		folder:   cfg.IMAP.Folder,
		name:     cfg.IMAP.Name,
		email:    cfg.IMAP.Email,
	}
}

func (f *initForm) build() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("IMAP Host").
				Description("IMAP server hostname").
				Placeholder("imap.example.com").
				Value(&f.host).
				Validate(validateRequired("IMAP Host")),
			huh.NewInput().
				Title("IMAP Port").
				Description("IMAP server port (e.g., 993)").
				Placeholder("993").
				Value(&f.port).
				Validate(validatePort),
			huh.NewConfirm().
				Title("Use TLS").
				Description("No upgrades a plain connection with STARTTLS").
				Value(&f.tls),
			huh.NewInput().
				Title("Username").
				Value(&f.username).
				Validate(validateRequired("Username")),
			huh.NewInput().
				Title("Password").
				Description("Stored in the system keyring").
				EchoMode(huh.EchoModePassword).
				Value(&f.password).
				Validate(validateRequired("Password")),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Folder").
				Description("Mailbox that receives feed entries").
				Placeholder("INBOX").
				Value(&f.folder).
				Validate(validateRequired("Folder")),
			huh.NewInput().
				Title("Your Name").
				Description("Shown in the To header").
				Value(&f.name),
			huh.NewInput().
				Title("Your Email").
				Description("Recipient address of every message").
				Value(&f.email).
				Validate(validateEmail),
		),
	)
}

// apply copies the form into cfg. The password is not written to cfg.
func (f *initForm) apply(cfg *model.AppConfig) error {
	port, err := strconv.Atoi(strings.TrimSpace(f.port))
	if err != nil {
		return fmt.Errorf("invalid port %q: %w", f.port, err)
	}
	cfg.IMAP.Host = strings.TrimSpace(f.host)
	cfg.IMAP.Port = port
	cfg.IMAP.TLS = f.tls
	cfg.IMAP.Username = strings.TrimSpace(f.username)
	cfg.IMAP.Folder = strings.TrimSpace(f.folder)
	cfg.IMAP.Name = strings.TrimSpace(f.name)
	cfg.IMAP.Email = strings.TrimSpace(f.email)
	cfg.IMAP.Password = ""
	cfg.IMAP.PasswordRef = credential.Ref(credential.IMAPKey(cfg.IMAP.Username))
	return nil
}

func (a *App) runInit() error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}

	oldRef := cfg.IMAP.PasswordRef
	form := newInitForm(cfg)
	if err := form.build().Run(); err != nil {
		return fmt.Errorf("running form: %w", err)
	}
	if err := form.apply(cfg); err != nil {
		return err
	}

	ref, err := credential.Replace(oldRef, credential.IMAPKey(cfg.IMAP.Username), form.password)
	if ref == "" {
		return fmt.Errorf("saving credential: %w", err)
	}
	if err != nil {
		a.logger.Warn("old credential left in keyring",
			slog.String("password_ref", oldRef),
			slog.String("error", err.Error()),
		)
	}
	cfg.IMAP.PasswordRef = ref
	if err := model.SaveConfig(a.configPath, cfg); err != nil {
		return err
	}

	fmt.Fprintf(a.stdout, "Configuration written to %s\n", a.configPath)
	return nil
}

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}

func validatePort(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("port is required")
	}
	port, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("port must be a number")
	}
	if port <= 0 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	return nil
}

func validateEmail(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return fmt.Errorf("email is required")
	}
	at := strings.LastIndex(s, "@")
	if at <= 0 || at == len(s)-1 {
		return fmt.Errorf("email must look like user@example.com")
	}
	return nil
}
