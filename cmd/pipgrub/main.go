// Command pipgrub is a thin CLI wiring the resolver, registry, and
// publisher packages together; see spec.md §1, which scopes the CLI
// surface itself out of the specified core.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"

	"github.com/spf13/cobra"

	"github.com/bilusteknoloji/pipgrub/internal/diagnostic"
	"github.com/bilusteknoloji/pipgrub/internal/distname"
	"github.com/bilusteknoloji/pipgrub/internal/publish"
	"github.com/bilusteknoloji/pipgrub/internal/registry"
	"github.com/bilusteknoloji/pipgrub/internal/reqfile"
	"github.com/bilusteknoloji/pipgrub/internal/requirement"
	"github.com/bilusteknoloji/pipgrub/internal/resolve"
)

// exitInputError is spec.md §6's exit code 2: input validation failure
// (a malformed requirement, an unparseable requirements file).
const exitInputError = 2

// exitResolutionError is spec.md §6's exit code 1: resolution failure.
const exitResolutionError = 1

var version = "0.0.0"

func main() {
	if err := run(); err != nil {
		var exitErr *exitCodeError
		if asExitCodeError(err, &exitErr) {
			fmt.Fprintf(os.Stderr, "error: %v\n", exitErr.err)
			os.Exit(exitErr.code)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(exitResolutionError)
	}
}

// exitCodeError carries the exit code a failure should surface as,
// distinguishing input-validation failures (2) from resolution failures
// (1) per spec.md §6.
type exitCodeError struct {
	code int
	err  error
}

func (e *exitCodeError) Error() string { return e.err.Error() }
func (e *exitCodeError) Unwrap() error { return e.err }

func asExitCodeError(err error, target **exitCodeError) bool {
	e, ok := err.(*exitCodeError)
	if ok {
		*target = e
	}
	return ok
}

func run() error {
	rootCmd := &cobra.Command{
		Use:           "pipgrub",
		Short:         "A PEP 440 dependency resolver and publisher",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(newResolveCmd(), newPublishCmd())

	return rootCmd.Execute()
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// --- resolve ---

func newResolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve [requirements...]",
		Short: "Resolve a set of requirements against a registry",
		RunE:  runResolve,
	}
	cmd.Flags().StringP("requirements", "r", "", "Read additional requirements from a requirements.txt file")
	cmd.Flags().String("index-url", "https://pypi.org/simple", "Simple-index root URL")
	cmd.Flags().String("python-version", "3.12", "Target interpreter's python_version marker value")
	cmd.Flags().String("platform", "manylinux_2_17_x86_64", "Target wheel platform tag")
	cmd.Flags().Bool("pre", false, "Allow pre-release versions")
	cmd.Flags().BoolP("verbose", "v", false, "Verbose logging")
	return cmd
}

func runResolve(cmd *cobra.Command, args []string) error {
	reqFile, _ := cmd.Flags().GetString("requirements")
	indexURL, _ := cmd.Flags().GetString("index-url")
	pyVersion, _ := cmd.Flags().GetString("python-version")
	platform, _ := cmd.Flags().GetString("platform")
	allowPre, _ := cmd.Flags().GetBool("pre")
	verbose, _ := cmd.Flags().GetBool("verbose")

	logger := newLogger(verbose)

	raws, err := collectRawRequirements(args, reqFile)
	if err != nil {
		return &exitCodeError{code: exitInputError, err: err}
	}
	if len(raws) == 0 {
		return &exitCodeError{code: exitInputError, err: fmt.Errorf("no requirements given; pass names or -r requirements.txt")}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	profile := buildInterpreterProfile(pyVersion, platform)
	env := profile.MarkerEnv("")

	rootTerms := resolve.RootTerms(raws, env)

	client := registry.New(registry.WithBaseURL(indexURL), registry.WithLogger(logger))
	source := resolve.NewRegistrySource(client, profile)

	opts := []resolve.Option{resolve.WithLogger(logger)}
	if allowPre {
		opts = append(opts, resolve.WithPrereleasePolicy(resolve.PrereleaseAllowAll))
	}
	solver := resolve.New(source, opts...)

	solution, failure := solver.Solve(ctx, rootTerms)
	if failure != nil {
		fmt.Fprintln(os.Stderr, diagnostic.Failure(failure))
		return &exitCodeError{code: exitResolutionError, err: fmt.Errorf("no solution found")}
	}

	printSolution(solution)
	return nil
}

func printSolution(solution *resolve.Solution) {
	type row struct {
		subject resolve.Subject
		version string
	}
	rows := make([]row, 0, len(solution.Versions))
	for subj, v := range solution.Versions {
		if subj.Name == "$root" {
			continue
		}
		rows = append(rows, row{subject: subj, version: v.String()})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].subject.String() < rows[j].subject.String() })

	for _, r := range rows {
		fmt.Printf("%s %s\n", r.subject, r.version)
	}
	for _, w := range solution.Warnings {
		fmt.Fprintln(os.Stderr, "warning:", w)
	}
}

func buildInterpreterProfile(pyVersion, platform string) requirement.InterpreterProfile {
	major := "3"
	if len(pyVersion) > 0 {
		major = pyVersion[:1]
	}
	cpTag := "cp" + compactVersion(pyVersion)
	return requirement.InterpreterProfile{
		PythonVersion:     pyVersion,
		PythonFullVersion: pyVersion,
		Implementation:    "cpython",
		ImplementationVer: pyVersion,
		PlatformPython:    "CPython",
		SysPlatform:       sysPlatformFor(platform),
		OsName:            "posix",
		CompatTags: []distname.WheelTag{
			{Python: cpTag, ABI: cpTag, Platform: platform},
			{Python: cpTag, ABI: "abi3", Platform: platform},
			{Python: cpTag, ABI: "none", Platform: platform},
			{Python: "py" + major, ABI: "none", Platform: platform},
			{Python: cpTag, ABI: "none", Platform: "any"},
			{Python: "py" + major, ABI: "none", Platform: "any"},
		},
	}
}

func sysPlatformFor(platform string) string {
	switch {
	case hasPrefix(platform, "macosx"):
		return "darwin"
	case hasPrefix(platform, "win"):
		return "win32"
	default:
		return "linux"
	}
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

// compactVersion turns "3.12" into "312" for a CPython tag.
func compactVersion(v string) string {
	out := make([]byte, 0, len(v))
	for i := 0; i < len(v); i++ {
		if v[i] != '.' {
			out = append(out, v[i])
		}
	}
	return string(out)
}

// osFileReader implements reqfile.Reader over the local filesystem; URL
// includes are rejected since the CLI has no injected HTTP client for
// them.
type osFileReader struct{}

func (osFileReader) ReadFile(p string) ([]byte, error) { return os.ReadFile(p) }
func (osFileReader) FetchURL(url string) ([]byte, error) {
	return nil, fmt.Errorf("URL includes are not supported: %s", url)
}

func collectRawRequirements(args []string, reqFile string) ([]string, error) {
	raws := append([]string(nil), args...)
	if reqFile == "" {
		return raws, nil
	}
	parsed, err := reqfile.Parse(reqFile, osFileReader{}, nil)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", reqFile, err)
	}
	for _, w := range parsed.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %s:%d: %s\n", w.File, w.Line, w.Msg)
	}
	for _, entry := range parsed.Requirements {
		raws = append(raws, entry.Requirement.Raw)
	}
	return raws, nil
}

// --- publish ---

func newPublishCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "publish [files...]",
		Short: "Upload local distribution files to a registry",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runPublish,
	}
	cmd.Flags().String("upload-url", "", "Classic multipart-POST upload endpoint")
	cmd.Flags().String("check-url", "", "Simple-index base URL used for the hash re-check on server errors")
	cmd.Flags().StringSlice("classifier", nil, "Trove classifier (repeatable)")
	cmd.Flags().StringSlice("requires-dist", nil, "Requires-Dist entry (repeatable)")
	cmd.Flags().String("author", "", "Package author")
	cmd.Flags().BoolP("verbose", "v", false, "Verbose logging")
	_ = cmd.MarkFlagRequired("upload-url")
	return cmd
}

func runPublish(cmd *cobra.Command, args []string) error {
	uploadURL, _ := cmd.Flags().GetString("upload-url")
	checkURL, _ := cmd.Flags().GetString("check-url")
	classifiers, _ := cmd.Flags().GetStringSlice("classifier")
	requiresDist, _ := cmd.Flags().GetStringSlice("requires-dist")
	author, _ := cmd.Flags().GetString("author")
	verbose, _ := cmd.Flags().GetBool("verbose")

	logger := newLogger(verbose)

	groups, warnings := publish.GroupFiles(args)
	for _, w := range warnings {
		fmt.Fprintln(os.Stderr, "warning:", w)
	}
	if len(groups) == 0 {
		return &exitCodeError{code: exitInputError, err: fmt.Errorf("no recognizable distribution files given")}
	}

	opts := []publish.Option{publish.WithLogger(logger)}
	if checkURL != "" {
		opts = append(opts, publish.WithCheckClient(registry.New(registry.WithBaseURL(checkURL), registry.WithLogger(logger))))
	}
	svc := publish.New(opts...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var failed bool
	for _, g := range groups {
		md, err := publish.DescribeGroup(g, publish.Metadata{
			Classifiers:  classifiers,
			RequiresDist: requiresDist,
			Author:       author,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %s: %v\n", g.Dist.Name, err)
			failed = true
			continue
		}
		result, err := svc.PublishClassic(ctx, uploadURL, g, md, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %s %s: %v\n", g.Dist.Name, g.Dist.Version, err)
			failed = true
			continue
		}
		if result.Skipped {
			fmt.Printf("%s %s already present, skipped\n", g.Dist.Name, g.Dist.Version)
			continue
		}
		fmt.Printf("%s %s uploaded\n", g.Dist.Name, g.Dist.Version)
	}

	if failed {
		return &exitCodeError{code: exitResolutionError, err: fmt.Errorf("one or more uploads failed")}
	}
	return nil
}
