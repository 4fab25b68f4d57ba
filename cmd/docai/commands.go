package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/documentai/docai/internal/core/domain"
	"github.com/documentai/docai/internal/core/ports"
	"github.com/documentai/docai/internal/core/service"
	"github.com/documentai/docai/internal/pkg/validation"
)

type loginForm struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type signupForm struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Name     string `json:"name" validate:"max=100"`
}

func newLoginCmd(c *cli) *cobra.Command {
	var form loginForm
	cmd := &cobra.Command{
		Use:   "login --email <email> [--password <password>]",
		Short: "Sign in and persist the session",
		Args:  usageArgs(cobra.NoArgs),
		RunE: c.action(func(ctx context.Context, a *app, _ []string) error {
			return cmdLogin(ctx, a, form)
		}),
	}
	cmd.Flags().StringVar(&form.Email, "email", "", "account email")
	cmd.Flags().StringVar(&form.Password, "password", "", "account password (prompted when omitted)")
	return cmd
}

func cmdLogin(ctx context.Context, a *app, form loginForm) error {
	if form.Password == "" {
		form.Password = a.readPassword("Password: ")
	}
	if err := validation.Struct(form); err != nil {
		return usagef("%v", err)
	}

	if err := a.session.Login(ctx, form.Email, form.Password); err != nil {
		return describeAuthError("login", err)
	}
	return a.printUser("Signed in as")
}

func newSignupCmd(c *cli) *cobra.Command {
	var form signupForm
	cmd := &cobra.Command{
		Use:   "signup --email <email> [--name <name>] [--password <password>]",
		Short: "Create an account and sign in",
		Args:  usageArgs(cobra.NoArgs),
		RunE: c.action(func(ctx context.Context, a *app, _ []string) error {
			return cmdSignup(ctx, a, form)
		}),
	}
	cmd.Flags().StringVar(&form.Email, "email", "", "account email")
	cmd.Flags().StringVar(&form.Name, "name", "", "display name")
	cmd.Flags().StringVar(&form.Password, "password", "", "account password (prompted when omitted)")
	return cmd
}

func cmdSignup(ctx context.Context, a *app, form signupForm) error {
	if form.Password == "" {
		form.Password = a.readPassword("Password: ")
	}
	if err := validation.Struct(form); err != nil {
		return usagef("%v", err)
	}

	if err := a.session.Signup(ctx, form.Email, form.Password, form.Name); err != nil {
		return describeAuthError("signup", err)
	}
	return a.printUser("Account created for")
}

func newLogoutCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored session",
		Args:  usageArgs(cobra.NoArgs),
		RunE:  c.action(cmdLogout),
	}
}

func cmdLogout(ctx context.Context, a *app, _ []string) error {
	a.session.Logout(ctx)
	fmt.Fprintln(a.stdout, "Signed out")
	return nil
}

func newWhoamiCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user and credential expiry",
		Args:  usageArgs(cobra.NoArgs),
		RunE:  c.action(cmdWhoami),
	}
}

func cmdWhoami(_ context.Context, a *app, _ []string) error {
	user, ok := a.session.CurrentUser()
	if !ok {
		fmt.Fprintln(a.stdout, "Not signed in")
		return nil
	}
	fmt.Fprintf(a.stdout, "%s <%s>\n", user.DisplayName(), user.Email)

	token, ok := a.session.Credential()
	switch {
	case !ok:
		fmt.Fprintln(a.stdout, "credential: none")
	default:
		if exp, ok := service.CredentialExpiry(token); ok {
			fmt.Fprintf(a.stdout, "credential: expires %s\n", exp.Local().Format(time.RFC1123))
		} else {
			fmt.Fprintln(a.stdout, "credential: present")
		}
	}
	return nil
}

func newTokenCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage the stored session credential",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "set <token>",
			Short: "Store a credential obtained elsewhere",
			Args:  usageArgs(cobra.ExactArgs(1)),
			RunE:  c.action(cmdTokenSet),
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Remove the stored credential",
			Args:  usageArgs(cobra.NoArgs),
			RunE:  c.action(cmdTokenClear),
		},
	)
	return cmd
}

func cmdTokenSet(ctx context.Context, a *app, args []string) error {
	token := strings.TrimSpace(args[0])
	if token == "" {
		return usagef("token must not be empty")
	}
	if err := a.session.SetCredential(ctx, token); err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, "Credential stored")
	return nil
}

func cmdTokenClear(ctx context.Context, a *app, _ []string) error {
	if err := a.session.SetCredential(ctx, ""); err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, "Credential cleared")
	return nil
}

func newUploadCmd(c *cli) *cobra.Command {
	var noBeautify bool
	cmd := &cobra.Command{
		Use:   "upload [--no-beautify] <file>...",
		Short: "Upload documents for processing",
		Args:  usageArgs(cobra.MinimumNArgs(1)),
		RunE: c.action(func(ctx context.Context, a *app, args []string) error {
			return cmdUpload(ctx, a, args, !noBeautify)
		}),
	}
	cmd.Flags().BoolVar(&noBeautify, "no-beautify", false, "skip AI beautification")
	return cmd
}

func cmdUpload(ctx context.Context, a *app, paths []string, beautify bool) error {
	inputs := make([]ports.UploadInput, 0, len(paths))
	for _, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		inputs = append(inputs, ports.UploadInput{
			Name:     filepath.Base(path),
			Content:  content,
			Beautify: beautify,
		})
	}

	var mu sync.Mutex
	last := make(map[string]int, len(inputs))
	progress := func(name string, pct int) {
		mu.Lock()
		defer mu.Unlock()
		if last[name] == pct {
			return
		}
		last[name] = pct
		fmt.Fprintf(a.stderr, "%s: %d%%\n", name, pct)
	}

	failed := 0
	for _, o := range a.dispatcher.Run(ctx, inputs, progress) {
		if o.Err != nil {
			failed++
			fmt.Fprintf(a.stdout, "%s\tfailed: %v\n", o.Name, o.Err)
			continue
		}
		fmt.Fprintf(a.stdout, "%s\t%s\t%s\n", o.Name, o.Result.Filename, o.Result.DownloadURL)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d uploads failed", failed, len(inputs))
	}
	return nil
}

func newFilesCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "files",
		Short: "List processed documents",
		Args:  usageArgs(cobra.NoArgs),
		RunE:  c.action(cmdFiles),
	}
}

func cmdFiles(ctx context.Context, a *app, _ []string) error {
	files, err := a.documents.ListFiles(ctx)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		fmt.Fprintln(a.stdout, "No processed files yet")
		return nil
	}

	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSIZE\tSTATUS\tPROCESSED")
	for _, f := range files {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			f.ID, f.Name, service.FormatFileSize(f.FileSize), f.Status, f.ProcessedAt.Local().Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}

func newRemoveCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <file-id>",
		Short: "Delete a processed document",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE:  c.action(cmdRemove),
	}
}

func cmdRemove(ctx context.Context, a *app, args []string) error {
	if err := a.documents.DeleteFile(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Deleted %s\n", args[0])
	return nil
}

func newChatCmd(c *cli) *cobra.Command {
	var fileID string
	cmd := &cobra.Command{
		Use:   "chat --file <file-id> [question]",
		Short: "Ask questions about a processed document",
		Args: func(*cobra.Command, []string) error {
			if fileID == "" {
				return usagef("--file is required")
			}
			return nil
		},
		RunE: c.action(func(ctx context.Context, a *app, args []string) error {
			return cmdChat(ctx, a, fileID, args)
		}),
	}
	cmd.Flags().StringVar(&fileID, "file", "", "processed file to ask about")
	return cmd
}

func cmdChat(ctx context.Context, a *app, fileID string, question []string) error {
	conv := a.documents.NewChat(fileID)

	// One-shot question.
	if len(question) > 0 {
		reply, err := conv.Send(ctx, strings.Join(question, " "))
		if err != nil {
			return err
		}
		fmt.Fprintln(a.stdout, reply.Content)
		return nil
	}

	fmt.Fprintln(a.stderr, "Ask questions about the document; an empty line or EOF ends the chat.")
	scanner := bufio.NewScanner(a.stdin)
	for {
		fmt.Fprint(a.stderr, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			return nil
		}
		reply, err := conv.Send(ctx, line)
		if err != nil {
			fmt.Fprintf(a.stderr, "error: %v\n", err)
			continue
		}
		fmt.Fprintln(a.stdout, reply.Content)
	}
}

func newDownloadCmd(c *cli) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "download <url> -o <path>",
		Short: "Save a processed document",
		Args: usageArgs(cobra.MatchAll(cobra.ExactArgs(1), func(*cobra.Command, []string) error {
			if out == "" {
				return errors.New("-o is required")
			}
			return nil
		})),
		RunE: c.action(func(ctx context.Context, a *app, args []string) error {
			return cmdDownload(ctx, a, args[0], out)
		}),
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "output path")
	return cmd
}

func cmdDownload(ctx context.Context, a *app, url, out string) error {
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	n, err := a.documents.Download(ctx, url, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(out)
		return err
	}
	fmt.Fprintf(a.stdout, "Saved %s (%s)\n", out, service.FormatFileSize(n))
	return nil
}

// readPassword prompts for a secret. A terminal on stdin is read without
// echo; piped input is read up to the end of the line.
func (a *app) readPassword(label string) string {
	fmt.Fprint(a.stderr, label)
	if f, ok := a.stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		secret, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(a.stderr)
		if err != nil {
			return ""
		}
		return string(secret)
	}

	line, err := bufio.NewReader(a.stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return ""
	}
	return strings.TrimRight(line, "\r\n")
}

func (a *app) printUser(prefix string) error {
	user, ok := a.session.CurrentUser()
	if !ok {
		return domain.ErrSuperseded
	}
	fmt.Fprintf(a.stdout, "%s %s <%s>\n", prefix, user.DisplayName(), user.Email)
	return nil
}

func describeAuthError(op string, err error) error {
	var se *domain.StatusError
	switch {
	case errors.As(err, &se) && se.Message != "":
		return fmt.Errorf("%s failed: %s", op, se.Message)
	case errors.Is(err, domain.ErrRejected):
		return fmt.Errorf("%s failed: %w", op, err)
	case errors.Is(err, domain.ErrUnreachable):
		return fmt.Errorf("%s failed: identity service unreachable: %w", op, err)
	default:
		return fmt.Errorf("%s failed: %w", op, err)
	}
}
