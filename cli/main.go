package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/term"

	"nicotools/config"
	httpclient "nicotools/http"
	"nicotools/internal/logging"
	"nicotools/internal/retry"
	"nicotools/internal/storage"
	"nicotools/mylist"
	"nicotools/nico"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

// errHelp is returned when -h was requested; it is not a failure.
var errHelp = errors.New("help requested")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	os.Exit(run(ctx, os.Args[1:]))
}

func run(ctx context.Context, args []string) int {
	if len(args) < 1 {
		printUsage()
		return exitUsage
	}

	var err error
	switch command, rest := args[0], args[1:]; command {
	case "download", "dl":
		err = cmdDownload(ctx, rest)
	case "mylist", "ml":
		err = cmdMylist(ctx, rest)
	case "help", "-h", "--help":
		printUsage()
		return exitOK
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n\n", command)
		printUsage()
		return exitUsage
	}

	if err != nil && !errors.Is(err, errHelp) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return exitCode(err)
}

// exitCode maps a command result to the process status.
func exitCode(err error) int {
	switch {
	case err == nil, errors.Is(err, errHelp):
		return exitOK
	case errors.Is(err, nico.ErrBadArgument):
		return exitUsage
	}
	return exitFailure
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `nicotools - niconico downloader and mylist manager

Usage:
  nicotools download [flags] <id|url|+file>...     Download videos, comments, thumbnails
  nicotools mylist [flags] <list> [id|url|+file]... Manage mylists
  nicotools help                                   Show this help message

Examples:
  nicotools download -v -c sm9                        # Video and comments
  nicotools download -t -d ~/thumbs +ids.txt          # Thumbnails for every ID in a file
  nicotools download -i -o info.xml sm9 so1234        # Raw descriptors
  nicotools mylist -add "My list" sm9 sm1097445       # Add to a list
  nicotools mylist -move -to Archive "My list" sm9    # Move between lists
  nicotools mylist -delete "My list" "*"              # Empty a list
  nicotools mylist -show -table "*"                   # Every list with its item count
  nicotools mylist -export -out ids.txt "My list"     # Content IDs only

Account and behaviour defaults come from nicotools.json and NICOTOOLS_* variables.
For help on specific command: nicotools <command> -h
`)
}

// globalFlags are accepted by every command.
type globalFlags struct {
	mail     string
	password string
	cookies  string
	netscape string
	logLevel string
	what     bool
}

func (g *globalFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&g.mail, "u", "", "Account mail address (overrides NICOTOOLS_MAIL)")
	fs.StringVar(&g.password, "p", "", "Account password (overrides NICOTOOLS_PASSWORD)")
	fs.StringVar(&g.cookies, "cookies", "", "Keep the session in this cookie file between runs")
	fs.StringVar(&g.netscape, "netscape-cookies", "", "Use a browser-exported cookies.txt instead of logging in")
	fs.StringVar(&g.logLevel, "l", "", "Log level: debug, info, warn, error or quiet")
	fs.BoolVar(&g.what, "w", false, "Print what would be done and exit")
}

// setup loads the configuration, applies flag overrides and builds the logger.
func (g *globalFlags) setup() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("loading config: %w", err)
	}
	if g.mail != "" {
		cfg.Mail = g.mail
	}
	if g.password != "" {
		cfg.Password = g.password
	}
	if g.cookies != "" {
		cfg.CookieFile = g.cookies
	}
	if g.netscape != "" {
		cfg.NetscapeCookies = g.netscape
	}
	if g.logLevel != "" {
		cfg.LogLevel = g.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, zerolog.Nop(), err
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("%w: %v", nico.ErrBadArgument, err)
	}
	return cfg, logging.New(level, nil), nil
}

// parseFlags parses args, turning flag errors into bad-argument errors.
func parseFlags(fs *flag.FlagSet, args []string) error {
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return errHelp
		}
		return fmt.Errorf("%w: %v", nico.ErrBadArgument, err)
	}
	return nil
}

func badArg(format string, args ...any) error {
	return fmt.Errorf("%w: %s", nico.ErrBadArgument, fmt.Sprintf(format, args...))
}

// contentIDs expands +file arguments and normalises the result.
func contentIDs(args []string) ([]string, error) {
	expanded, err := nico.ExpandArgs(args)
	if err != nil {
		return nil, err
	}
	return nico.Resolve(expanded), nil
}

func httpConfig(cfg *config.Config) *httpclient.Config {
	hc := httpclient.DefaultConfig()
	hc.Timeout = cfg.RequestTimeout.D()
	hc.ConnectTimeout = cfg.ConnectTimeout.D()
	hc.ReadTimeout = cfg.ReadTimeout.D()
	hc.Retry = retry.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff.D(),
		MaxBackoff:     cfg.MaxBackoff.D(),
		Multiplier:     cfg.BackoffMultiplier,
		JitterFraction: retry.DefaultConfig().JitterFraction,
	}
	return hc
}

func login(ctx context.Context, cfg *config.Config, hc *httpclient.Config, log zerolog.Logger, needToken bool) (*nico.Session, error) {
	return nico.Login(ctx, nico.LoginOptions{
		Mail:            cfg.Mail,
		Password:        cfg.Password,
		CookieFile:      cfg.CookieFile,
		NetscapeCookies: cfg.NetscapeCookies,
		NeedToken:       needToken,
		HTTP:            hc,
		Endpoints:       nico.DefaultEndpoints(),
		Logger:          log,
	})
}

func closeSession(s *nico.Session, log zerolog.Logger) {
	if err := s.Close(); err != nil {
		log.Warn().Err(err).Msg("could not save cookies")
	}
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// emit writes the rendered output to path, or to stdout when path is empty.
func emit(path string, log zerolog.Logger, render func(w io.Writer) error) error {
	if path == "" {
		return render(os.Stdout)
	}
	var buf bytes.Buffer
	if err := render(&buf); err != nil {
		return err
	}
	if err := storage.WriteFile(path, buf.Bytes()); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	log.Info().Str("path", path).Msg("written")
	return nil
}

type downloadRequest struct {
	video, comment, thumbnail, info bool

	xml   bool
	small bool
	dest  string
	out   string
	ids   []string
}

func (r *downloadRequest) needsLogin() bool { return r.video || r.comment }

func (r *downloadRequest) kinds() []string {
	var kinds []string
	for _, k := range []struct {
		on   bool
		name string
	}{{r.info, "info"}, {r.thumbnail, "thumbnail"}, {r.video, "video"}, {r.comment, "comment"}} {
		if k.on {
			kinds = append(kinds, k.name)
		}
	}
	return kinds
}

func parseDownload(args []string) (*downloadRequest, *globalFlags, error) {
	fs := flag.NewFlagSet("download", flag.ContinueOnError)
	var g globalFlags
	g.register(fs)

	r := &downloadRequest{}
	fs.BoolVar(&r.video, "v", false, "Download videos")
	fs.BoolVar(&r.comment, "c", false, "Download comments")
	fs.BoolVar(&r.thumbnail, "t", false, "Download thumbnails")
	fs.BoolVar(&r.info, "i", false, "Print the raw getthumbinfo documents")
	fs.BoolVar(&r.xml, "x", false, "Save user-content comments in the XML format")
	fs.BoolVar(&r.small, "small", false, "Skip the large thumbnail and fetch the plain one")
	fs.StringVar(&r.dest, "d", "", "Destination directory (default from config)")
	fs.StringVar(&r.out, "o", "", "Write -i output to this file instead of stdout")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: nicotools download [flags] <id|url|+file>...\n\nFlags:\n")
		fs.PrintDefaults()
	}
	if err := parseFlags(fs, args); err != nil {
		return nil, nil, err
	}

	if len(r.kinds()) == 0 {
		return nil, nil, badArg("choose at least one of -v, -c, -t or -i")
	}
	if fs.NArg() == 0 {
		return nil, nil, badArg("missing content ID")
	}
	ids, err := contentIDs(fs.Args())
	if err != nil {
		return nil, nil, err
	}
	for _, id := range ids {
		if id != nico.Wildcard {
			r.ids = append(r.ids, id)
		}
	}
	if len(r.ids) == 0 {
		return nil, nil, badArg("no valid content IDs in %s", strings.Join(fs.Args(), " "))
	}
	return r, &g, nil
}

func cmdDownload(ctx context.Context, args []string) error {
	req, g, err := parseDownload(args)
	if err != nil {
		return err
	}
	cfg, log, err := g.setup()
	if err != nil {
		return err
	}
	if req.dest == "" {
		req.dest = cfg.Destination
	}
	if g.what {
		fmt.Printf("download %s of %s into %s\n", strings.Join(req.kinds(), ", "), strings.Join(req.ids, " "), req.dest)
		return nil
	}

	hc := httpConfig(cfg)
	ep := nico.DefaultEndpoints()

	var sess *nico.Session
	var client *httpclient.Client
	if req.needsLogin() {
		sess, err = login(ctx, cfg, hc, log, false)
		if err != nil {
			return err
		}
		defer closeSession(sess, log)
		client = sess.Client
	} else {
		client = httpclient.New(hc)
	}
	defer client.Close()

	info := nico.NewInfoFetcher(client, ep, log)
	if req.info {
		if err := emit(req.out, log, func(w io.Writer) error { return info.Raw(ctx, req.ids, w) }); err != nil {
			return err
		}
	}
	if !req.thumbnail && !req.video && !req.comment {
		return nil
	}

	db, err := info.Fetch(ctx, req.ids)
	if err != nil {
		return err
	}
	if db.Len() == 0 {
		return errors.New("nothing to download: every ID was unavailable")
	}

	fetch := nico.FetchOptions{
		Logger:            log,
		AccessLockWait:    cfg.AccessLockWait.D(),
		AccessLockRetries: cfg.AccessLockRetries,
	}

	var errs []error
	collect := func(kind string, res *nico.BatchResult, err error) bool {
		if err != nil {
			errs = append(errs, err)
			return false
		}
		if err := res.Err(kind); err != nil {
			errs = append(errs, err)
		}
		log.Info().Int("done", len(res.Done)).Int("skipped", len(res.Skipped)).Int("failed", len(res.Failed)).Msgf("%s finished", kind)
		return true
	}

	if req.thumbnail {
		res, err := nico.NewThumbnailFetcher(hc, nico.ThumbnailOptions{Logger: log, Large: !req.small}).Run(ctx, db, req.dest)
		if !collect("thumbnail", res, err) {
			return errors.Join(errs...)
		}
	}
	if req.video {
		opts := fetch
		opts.Interval = cfg.VideoInterval.D()
		if isTerminal(os.Stderr) {
			opts.Progress = nico.NewBarSink(os.Stderr)
		}
		res, err := nico.NewVideoFetcher(sess, opts).Run(ctx, db, req.dest)
		if !collect("video", res, err) {
			return errors.Join(errs...)
		}
	}
	if req.comment {
		opts := nico.CommentOptions{FetchOptions: fetch, XML: req.xml}
		opts.Interval = cfg.CommentInterval.D()
		res, err := nico.NewCommentFetcher(sess, opts).Run(ctx, db, req.dest)
		if !collect("comment", res, err) {
			return errors.Join(errs...)
		}
	}
	return errors.Join(errs...)
}

type mylistRequest struct {
	op     string
	target mylist.Ref
	to     string
	ids    []string

	table  bool
	out    string
	yes    bool
	public bool
	desc   string
}

// mutates reports whether the operation needs the account's mutation token.
func (r *mylistRequest) mutates() bool {
	switch r.op {
	case "show", "export":
		return false
	}
	return true
}

func parseMylist(args []string) (*mylistRequest, *globalFlags, error) {
	fs := flag.NewFlagSet("mylist", flag.ContinueOnError)
	var g globalFlags
	g.register(fs)

	r := &mylistRequest{}
	byID := fs.Bool("id", false, "Treat a numeric list argument as a list ID")
	fs.StringVar(&r.to, "to", "", "Destination list name for -copy and -move")
	ops := map[string]*bool{
		"add":    fs.Bool("add", false, "Add the given content to the list"),
		"delete": fs.Bool("delete", false, "Delete the given content from the list (\"*\" for every item)"),
		"move":   fs.Bool("move", false, "Move the given content to the -to list"),
		"copy":   fs.Bool("copy", false, "Copy the given content to the -to list"),
		"create": fs.Bool("create", false, "Create a list with the given name"),
		"purge":  fs.Bool("purge", false, "Delete the whole list"),
		"show":   fs.Bool("show", false, "Print the list's items (\"*\" for every list)"),
		"export": fs.Bool("export", false, "Print the list's content IDs (\"*\" for every list)"),
	}
	fs.BoolVar(&r.table, "table", false, "With -show, draw a table instead of tab-separated text")
	fs.StringVar(&r.out, "out", "", "Write -show or -export output to this file")
	fs.BoolVar(&r.yes, "yes", false, "Do not ask before purging or emptying a list")
	fs.BoolVar(&r.public, "public", false, "With -create, make the list public")
	fs.StringVar(&r.desc, "desc", "", "With -create, the list description")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: nicotools mylist [flags] <list> [id|url|+file]...\n\nFlags:\n")
		fs.PrintDefaults()
	}
	if err := parseFlags(fs, args); err != nil {
		return nil, nil, err
	}

	var chosen []string
	for name, on := range ops {
		if *on {
			chosen = append(chosen, name)
		}
	}
	switch len(chosen) {
	case 0:
		return nil, nil, badArg("choose one of -add, -delete, -move, -copy, -create, -purge, -show or -export")
	case 1:
		r.op = chosen[0]
	default:
		return nil, nil, badArg("only one operation at a time")
	}

	if fs.NArg() == 0 {
		return nil, nil, badArg("missing mylist name")
	}
	r.target = mylist.Ref{Target: fs.Arg(0), ByID: *byID}

	switch r.op {
	case "add", "delete", "move", "copy":
		if (r.op == "move" || r.op == "copy") && r.to == "" {
			return nil, nil, badArg("-%s needs -to", r.op)
		}
		if fs.NArg() < 2 {
			return nil, nil, badArg("-%s needs content IDs", r.op)
		}
		ids, err := contentIDs(fs.Args()[1:])
		if err != nil {
			return nil, nil, err
		}
		if len(ids) == 0 {
			return nil, nil, badArg("no valid content IDs in %s", strings.Join(fs.Args()[1:], " "))
		}
		r.ids = ids
	default:
		if fs.NArg() > 1 {
			return nil, nil, badArg("-%s takes only a list name", r.op)
		}
	}
	return r, &g, nil
}

func cmdMylist(ctx context.Context, args []string) error {
	req, g, err := parseMylist(args)
	if err != nil {
		return err
	}
	cfg, log, err := g.setup()
	if err != nil {
		return err
	}
	if g.what {
		fmt.Printf("%s %s %s\n", req.op, req.target, strings.Join(req.ids, " "))
		return nil
	}

	sess, err := login(ctx, cfg, httpConfig(cfg), log, req.mutates())
	if err != nil {
		return err
	}
	defer closeSession(sess, log)

	opts := mylist.Options{
		Logger:      log,
		Force:       req.yes,
		AddInterval: cfg.AddInterval.D(),
	}
	if isTerminal(os.Stdin) {
		opts.Confirmer = mylist.NewTerminalConfirmer(os.Stdin, os.Stderr)
	}
	eng, err := mylist.New(ctx, sess, opts)
	if err != nil {
		return err
	}

	var rep *mylist.Report
	to := mylist.Ref{Target: req.to}
	switch req.op {
	case "add":
		rep, err = eng.Add(ctx, req.target, req.ids...)
	case "delete":
		rep, err = eng.Delete(ctx, req.target, req.ids...)
	case "move":
		rep, err = eng.Move(ctx, req.target, to, req.ids...)
	case "copy":
		rep, err = eng.Copy(ctx, req.target, to, req.ids...)
	case "create":
		var d mylist.Descriptor
		if d, err = eng.Create(ctx, req.target.Target, req.public, req.desc); err == nil {
			fmt.Printf("created %s (%d)\n", d.Name, d.ID)
		}
	case "purge":
		err = eng.Purge(ctx, req.target)
	case "show":
		err = show(ctx, eng, req, log)
	case "export":
		err = export(ctx, eng, req, log)
	}

	if rep != nil {
		log.Info().Str("list", rep.List).Int("done", len(rep.Done)).Int("skipped", len(rep.Skipped)).Msgf("%s finished", rep.Op)
	}
	return err
}

func show(ctx context.Context, eng *mylist.Engine, req *mylistRequest, log zerolog.Logger) error {
	var header []string
	var rows [][]string
	if req.target.Wildcard() {
		lists, err := eng.Meta(ctx)
		if err != nil {
			return err
		}
		header, rows = mylist.SummaryHeader, mylist.SummaryRows(lists)
	} else {
		items, err := eng.Items(ctx, req.target)
		if err != nil {
			return err
		}
		header, rows = mylist.ItemHeader, mylist.ItemRows(items)
	}

	return emit(req.out, log, func(w io.Writer) error {
		if req.table {
			return mylist.WriteTable(w, header, rows)
		}
		return mylist.WriteTSV(w, header, rows)
	})
}

func export(ctx context.Context, eng *mylist.Engine, req *mylistRequest, log zerolog.Logger) error {
	var items []mylist.Item
	var err error
	if req.target.Wildcard() {
		items, err = eng.AllItems(ctx)
	} else {
		items, err = eng.Items(ctx, req.target)
	}
	if err != nil {
		return err
	}
	return emit(req.out, log, func(w io.Writer) error { return mylist.WriteIDs(w, items) })
}
