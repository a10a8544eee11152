package gaussian

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// CopyDirection says which way a file moves between the submission
// directory and the node-local scratch.
type CopyDirection int

const (
	CopyTo   CopyDirection = iota // staged to the scratch before the run
	CopyFrom                      // retrieved from the scratch afterwards
)

func (d CopyDirection) String() string {
	if d == CopyFrom {
		return "cpfrom"
	}
	return "cpto"
}

// CopyOp is one file transfer the job script must perform.
type CopyOp struct {
	Direction CopyDirection
	File      string
	Dir       string // context directory on the submission side
}

// FileOverride controls what happens to a link0 file directive. A nil
// pointer keeps the input's value; an empty path suppresses the directive
// entirely; anything else replaces it.
type FileOverride = *string

// KeepFile returns an override replacing the directive with path.
func KeepFile(path string) FileOverride { return &path }

// DropFile returns an override suppressing the directive.
func DropFile() FileOverride {
	empty := ""
	return &empty
}

// RewriteOptions are the resource overrides applied while rewriting an
// input file.
type RewriteOptions struct {
	NProcs  int    // 0 keeps the input's %NProc value
	Memory  string // "" keeps the input's %Mem value
	Chk     FileOverride
	Rwf     FileOverride
	RootDir string // context directory recorded on copy operations
}

// RewriteResult reports what the job actually needs after the overrides
// and the input's own directives are reconciled.
type RewriteResult struct {
	NProcs int    // 0 when neither override nor input specified it
	Memory string // "" likewise
	Copies []CopyOp
}

// Route feature detection. Gaussian accepts both freq=keyword and
// freq=(opt1,opt2,...) spellings, so the option blob is captured first and
// the keyword searched inside it.
var (
	freqBlobRe = regexp.MustCompile(`(?i)\bfreq\w*=?(\([^)]*\)|[^\s(]*)`)

	anharmOptRe = regexp.MustCompile(`(?i)\banharm(|onic)\b`)
	readAnhRe   = regexp.MustCompile(`(?i)\breadanh`)
	vibronicRe  = regexp.MustCompile(`(?i)\b(fc|fcht|ht)\b`)
	readFchtRe  = regexp.MustCompile(`(?i)\breadfcht\b`)
	geomViewRe  = regexp.MustCompile(`\bgeomview\b`)
	formCheckRe = regexp.MustCompile(`\b(FChk|FCheck|FormCheck)\b`)
)

// auxExts are the extensions of single-token data lines worth staging to
// the node when an anharmonic or vibronic section may reference them.
var auxExts = []string{".chk", ".dat", ".log", ".out", ".fch", ".rwf"}

// routeFeatures is what a parsed route section asked for.
type routeFeatures struct {
	anharmonic bool // Link717 job
	vibronic   bool // Link718 job
	copies     []CopyOp
}

func parseRoute(route string) routeFeatures {
	var f routeFeatures
	if geomViewRe.MatchString(route) {
		f.copies = append(f.copies, CopyOp{Direction: CopyFrom, File: "points.off"})
	}
	if formCheckRe.MatchString(route) {
		f.copies = append(f.copies, CopyOp{Direction: CopyFrom, File: "Test.FChk"})
	}
	for _, m := range freqBlobRe.FindAllStringSubmatch(route, -1) {
		blob := m[1]
		if vibronicRe.MatchString(blob) || readFchtRe.MatchString(blob) {
			f.vibronic = true
		}
		if readAnhRe.MatchString(blob) || anharmOptRe.MatchString(blob) {
			f.anharmonic = true
		}
	}
	return f
}

// chkUsage records how a checkpoint file is used, deciding the transfer
// directions.
type chkUsage int

const (
	chkBoth chkUsage = iota // staged in (if present) and retrieved
	chkIn                   // staged in only (%OldChk)
)

// Rewrite streams a Gaussian input file from src to dst, applying the
// resource overrides to every link0 block and collecting the files the job
// script must stage. Malformed directive lines pass through unmodified.
func Rewrite(src, dst string, opts RewriteOptions) (*RewriteResult, error) {
	in, err := os.Open(src)
	if err != nil {
		return nil, err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return nil, err
	}
	defer out.Close()

	w := bufio.NewWriter(out)
	res, err := rewrite(bufio.NewScanner(in), w, opts)
	if err != nil {
		return nil, err
	}
	if err := w.Flush(); err != nil {
		return nil, err
	}
	return res, out.Close()
}

type chkRef struct {
	usage chkUsage
	file  string
}

func rewrite(sc *bufio.Scanner, w *bufio.Writer, opts RewriteOptions) (*RewriteResult, error) {
	res := &RewriteResult{NProcs: opts.NProcs, Memory: opts.Memory}

	var chks []chkRef
	var rwfs []string
	var auxFiles []string

	if opts.Chk != nil && *opts.Chk != "" {
		chks = append(chks, chkRef{chkBoth, *opts.Chk})
	}
	if opts.Rwf != nil && *opts.Rwf != "" {
		rwfs = append(rwfs, *opts.Rwf)
	}

	writeHeader := func() {
		if opts.Memory != "" {
			fmt.Fprintf(w, "%%Mem=%s\n", opts.Memory)
		}
		if opts.NProcs > 0 {
			fmt.Fprintf(w, "%%NProcShared=%d\n", opts.NProcs)
		}
		if opts.Chk != nil && *opts.Chk != "" {
			fmt.Fprintf(w, "%%Chk=%s\n", *opts.Chk)
		}
		if opts.Rwf != nil && *opts.Rwf != "" {
			fmt.Fprintf(w, "%%Rwf=%s\n", *opts.Rwf)
		}
	}

	newLink := true
	inRoute := false
	route := ""
	var current routeFeatures

	endRoute := func() {
		if inRoute {
			current = parseRoute(route)
			for _, op := range current.copies {
				op.Dir = opts.RootDir
				res.Copies = append(res.Copies, op)
			}
			inRoute = false
		}
	}

	writeHeader()
	for sc.Scan() {
		line := sc.Text()
		lower := strings.ToLower(strings.TrimSpace(line))

		switch {
		case lower == "":
			// A blank line ends the current block.
			fmt.Fprintln(w, line)
			endRoute()
			continue

		case lower == "--link1--":
			fmt.Fprintln(w, line)
			newLink = true
			route = ""
			current = routeFeatures{}
			writeHeader()
			continue

		case strings.HasPrefix(lower, "%"):
			_, value, found := strings.Cut(line, "=")
			if !found {
				// %NoSave and anything unrecognized pass through.
				fmt.Fprintln(w, line)
				continue
			}
			value = strings.TrimSpace(value)
			keep := true
			switch {
			case strings.HasPrefix(lower, "%oldchk"):
				chks = append(chks, chkRef{chkIn, value})
			case strings.HasPrefix(lower, "%chk"):
				if opts.Chk == nil {
					chks = append(chks, chkRef{chkBoth, value})
				} else {
					keep = false
				}
			case strings.HasPrefix(lower, "%rwf"):
				if opts.Rwf == nil {
					rwfs = append(rwfs, value)
				} else {
					keep = false
				}
			case strings.HasPrefix(lower, "%mem"):
				if opts.Memory == "" {
					res.Memory = value
				} else {
					keep = false
				}
			case strings.HasPrefix(lower, "%nproc"):
				if opts.NProcs == 0 {
					if n, err := strconv.Atoi(value); err == nil {
						res.NProcs = n
					}
				} else {
					keep = false
				}
			}
			if keep {
				fmt.Fprintln(w, line)
			}
			continue

		case (strings.HasPrefix(lower, "#") && newLink) || inRoute:
			newLink = false
			inRoute = true
			route += " " + strings.TrimSpace(line)
			fmt.Fprintln(w, line)
			continue
		}

		// Body of the block: single-token lines naming data files are
		// staged when an anharmonic or vibronic section may read them.
		if current.anharmonic || current.vibronic {
			token := strings.TrimSpace(line)
			if len(strings.Fields(token)) == 1 && strings.Index(token, ".") > 0 {
				ext := strings.ToLower(filepath.Ext(token))
				if len(ext) > 4 {
					ext = ext[:4]
				}
				if containsString(auxExts, ext) {
					auxFiles = append(auxFiles, token)
				}
			}
		}
		fmt.Fprintln(w, line)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	endRoute()

	res.Copies = append(res.Copies, collectCopies(chks, rwfs, auxFiles, opts.RootDir)...)
	return res, nil
}

// collectCopies turns the recorded checkpoint, read-write and auxiliary
// files into transfer operations, deduplicated while preserving first
// occurrence order. Inbound copies are only scheduled for files that exist.
func collectCopies(chks []chkRef, rwfs, auxFiles []string, rootDir string) []CopyOp {
	var ops []CopyOp

	seenChk := make(map[chkRef]bool)
	for _, ref := range chks {
		if seenChk[ref] {
			continue
		}
		seenChk[ref] = true
		if fileExists(ref.file) {
			ops = append(ops, CopyOp{CopyTo, ref.file, rootDir})
		}
		if ref.usage == chkBoth {
			ops = append(ops, CopyOp{CopyFrom, ref.file, rootDir})
		}
	}

	seen := make(map[string]bool)
	for _, rwf := range rwfs {
		if seen[rwf] {
			continue
		}
		seen[rwf] = true
		if fileExists(rwf) {
			ops = append(ops, CopyOp{CopyTo, rwf, rootDir})
		}
		ops = append(ops, CopyOp{CopyFrom, rwf, rootDir})
	}

	seenAux := make(map[string]bool)
	for _, f := range auxFiles {
		if seenAux[f] {
			continue
		}
		seenAux[f] = true
		if fileExists(f) {
			ops = append(ops, CopyOp{CopyTo, f, rootDir})
		}
	}
	return ops
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
