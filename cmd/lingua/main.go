package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/pitabwire/util"

	"github.com/pitabwire/lingua/events"
	"github.com/pitabwire/lingua/importer"
	"github.com/pitabwire/lingua/locale"
	"github.com/pitabwire/lingua/version"
)

const (
	minArgsCommand = 2
	minArgsPlural  = 2
	minArgsPublish = 2
	minArgsUpdate  = 3
)

var errUsage = errors.New("invalid arguments")

func main() {
	if len(os.Args) < minArgsCommand {
		usage(os.Stdout)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout)
	stop()
	exitOnErr(err)
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		usage(out)
		return errUsage
	}

	var cmd func(context.Context, *app, []string, io.Writer) error

	switch args[0] {
	case "import":
		cmd = cmdImport
	case "get":
		cmd = cmdGet
	case "array":
		cmd = cmdArray
	case "plural":
		cmd = cmdPlural
	case "locales":
		cmd = cmdLocales
	case "watch":
		cmd = cmdWatch
	case "publish":
		cmd = cmdPublish
	case "version", "--version":
		fmt.Fprintln(out, version.String())
		return nil
	case "help", "-h", "--help":
		usage(out)
		return nil
	default:
		usage(out)
		return fmt.Errorf("unknown command: %q", args[0])
	}

	ctx, a, err := bootstrap(ctx)
	if err != nil {
		return err
	}

	err = cmd(ctx, a, args[1:], out)
	if cerr := a.close(context.WithoutCancel(ctx)); cerr != nil {
		util.Log(ctx).WithError(cerr).Warn("shutdown was not clean")
	}
	return err
}

func usage(out io.Writer) {
	fmt.Fprintln(out, "lingua <command> [args]")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Commands:")
	fmt.Fprintln(out, "  import <file|dir>...")
	fmt.Fprintln(out, "  get [--locale L] [--fallback F] <key>")
	fmt.Fprintln(out, "  array [--locale L] <key>")
	fmt.Fprintln(out, "  plural [--locale L] <key> <count>")
	fmt.Fprintln(out, "  locales")
	fmt.Fprintln(out, "  watch [--locale L] <key>...")
	fmt.Fprintln(out, "  publish locale <locale>")
	fmt.Fprintln(out, "  publish update [--description D] <key> <locale> <value>")
	fmt.Fprintln(out, "  version")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Configuration is read from the environment, see DATABASE_URL, REMOTE_BASE_URL,")
	fmt.Fprintln(out, "BUNDLE_CACHE_URL and EVENTS_QUEUE_URL.")
}

func cmdImport(ctx context.Context, a *app, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("%w: import needs at least one file or directory", errUsage)
	}

	var failed int
	for _, path := range fs.Args() {
		results, err := importPath(ctx, a, path)
		if err != nil {
			return err
		}
		for _, res := range results {
			fmt.Fprintf(out, "%s: %s values=%d arrays=%d plurals=%d\n",
				res.Source, res.Locale, res.Values, res.Arrays, res.Plurals)
			for _, itemErr := range res.Errors {
				failed++
				fmt.Fprintf(out, "  error: %v\n", itemErr)
			}
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d entries could not be imported", failed)
	}
	return nil
}

func importPath(ctx context.Context, a *app, path string) ([]importer.Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return importer.ImportDir(ctx, a.store, path)
	}

	res, err := importer.ImportFile(ctx, a.store, path)
	if err != nil {
		return nil, err
	}
	return []importer.Result{res}, nil
}

func cmdGet(ctx context.Context, a *app, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("get", flag.ContinueOnError)
	localeFlag := fs.String("locale", "", "locale to resolve in")
	fallback := fs.String("fallback", "", "fallback locale")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: get needs exactly one key", errUsage)
	}

	src := locale.NewSettableSource(a.startLocale(*localeFlag))
	defer src.Close()

	mgr, err := a.newManager(ctx, src, *fallback)
	if err != nil {
		return err
	}
	if a.fetcher != nil {
		if err = mgr.Refresh(ctx); err != nil {
			return err
		}
	}

	fmt.Fprintln(out, mgr.GetString(ctx, fs.Arg(0)))
	return nil
}

func cmdArray(ctx context.Context, a *app, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("array", flag.ContinueOnError)
	localeFlag := fs.String("locale", "", "locale to resolve in")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: array needs exactly one key", errUsage)
	}

	src := locale.NewSettableSource(a.startLocale(*localeFlag))
	defer src.Close()

	mgr, err := a.newManager(ctx, src, "")
	if err != nil {
		return err
	}

	items, err := mgr.GetArray(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	for _, item := range items {
		fmt.Fprintln(out, item)
	}
	return nil
}

func cmdPlural(ctx context.Context, a *app, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("plural", flag.ContinueOnError)
	localeFlag := fs.String("locale", "", "locale to resolve in")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != minArgsPlural {
		return fmt.Errorf("%w: plural needs a key and a count", errUsage)
	}

	count, err := strconv.Atoi(fs.Arg(1))
	if err != nil {
		return fmt.Errorf("%w: count %q is not a number", errUsage, fs.Arg(1))
	}

	src := locale.NewSettableSource(a.startLocale(*localeFlag))
	defer src.Close()

	mgr, err := a.newManager(ctx, src, "")
	if err != nil {
		return err
	}

	text, err := mgr.GetPlural(ctx, fs.Arg(0), count)
	if err != nil {
		return err
	}
	if strings.Contains(text, "%d") {
		text = strings.ReplaceAll(text, "%d", strconv.Itoa(count))
	}
	fmt.Fprintln(out, text)
	return nil
}

func cmdLocales(ctx context.Context, a *app, _ []string, out io.Writer) error {
	locales, err := a.store.Locales(ctx)
	if err != nil {
		return err
	}
	for _, l := range locales {
		fmt.Fprintln(out, l)
	}
	return nil
}

// cmdWatch prints the given keys whenever they change, following locale
// changes and translation updates from the event queue until interrupted.
func cmdWatch(ctx context.Context, a *app, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	localeFlag := fs.String("locale", "", "locale to start in")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("%w: watch needs at least one key", errUsage)
	}

	src := locale.NewSettableSource(a.startLocale(*localeFlag))
	defer src.Close()

	mgr, err := a.newManager(ctx, src, "")
	if err != nil {
		return err
	}
	if err = mgr.Init(ctx); err != nil {
		return err
	}

	evts, err := a.newEvents(ctx, src, mgr)
	if err != nil {
		return err
	}
	if err = evts.Listen(ctx); err != nil {
		return err
	}

	type update struct{ key, value string }
	updates := make(chan update)
	for _, key := range fs.Args() {
		go func() {
			for value := range mgr.ObserveString(ctx, key) {
				select {
				case updates <- update{key: key, value: value}:
				case <-ctx.Done():
					return
				}
			}
		}()
		mgr.OnRefresh(key, func() {
			util.Log(ctx).WithField("key", key).Debug("cached string refreshed")
		})
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case u := <-updates:
			fmt.Fprintf(out, "[%s] %s = %s\n", mgr.CurrentLocale(), u.key, u.value)
		}
	}
}

func cmdPublish(ctx context.Context, a *app, args []string, out io.Writer) error {
	if len(args) < minArgsPublish {
		return fmt.Errorf("%w: publish needs a kind and arguments", errUsage)
	}

	evts, err := a.newEvents(ctx, nil, nil)
	if err != nil {
		return err
	}

	switch args[0] {
	case "locale":
		err = evts.Emit(ctx, events.LocaleChangedName, events.LocaleChanged{Locale: args[1]})
	case "update":
		fs := flag.NewFlagSet("publish update", flag.ContinueOnError)
		description := fs.String("description", "", "description of the string")
		if err = fs.Parse(args[1:]); err != nil {
			return err
		}
		if fs.NArg() < minArgsUpdate {
			return fmt.Errorf("%w: publish update needs a key, a locale and a value", errUsage)
		}
		err = evts.Emit(ctx, events.TranslationUpdatedName, events.TranslationUpdated{
			Key:         fs.Arg(0),
			Locale:      fs.Arg(1),
			Value:       strings.Join(fs.Args()[2:], " "),
			Description: *description,
		})
	default:
		return fmt.Errorf("%w: unknown publish kind %q", errUsage, args[0])
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "published")
	return nil
}

func exitOnErr(err error) {
	if err == nil {
		return
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
