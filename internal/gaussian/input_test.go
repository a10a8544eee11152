package gaussian

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func runRewrite(t *testing.T, input string, opts RewriteOptions) (*RewriteResult, string) {
	t.Helper()
	dir := t.TempDir()
	src := filepath.Join(dir, "job.gjf")
	dst := filepath.Join(dir, "job_ext.gjf")
	if err := os.WriteFile(src, []byte(input), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}
	res, err := Rewrite(src, dst, opts)
	if err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	return res, string(data)
}

func TestRewriteOverrides(t *testing.T) {
	dir := t.TempDir()
	chk := filepath.Join(dir, "job.chk")
	if err := os.WriteFile(chk, []byte("x"), 0o644); err != nil {
		t.Fatalf("write chk: %v", err)
	}

	input := "%Mem=1GB\n%NProcShared=2\n%Chk=old.chk\n#P B3LYP Opt\n\ntitle\n\n0 1\nH 0. 0. 0.\n\n"
	res, out := runRewrite(t, input, RewriteOptions{
		NProcs:  8,
		Memory:  "16GB",
		Chk:     KeepFile(chk),
		RootDir: dir,
	})

	lines := strings.Split(out, "\n")
	want := []string{"%Mem=16GB", "%NProcShared=8", "%Chk=" + chk, "#P B3LYP Opt"}
	for i, w := range want {
		if lines[i] != w {
			t.Fatalf("line %d: got %q, want %q", i, lines[i], w)
		}
	}
	if strings.Contains(out, "old.chk") || strings.Contains(out, "%Mem=1GB") {
		t.Fatalf("input directives not stripped:\n%s", out)
	}
	if res.NProcs != 8 || res.Memory != "16GB" {
		t.Fatalf("resources: got %d %q", res.NProcs, res.Memory)
	}

	wantCopies := []CopyOp{
		{CopyTo, chk, dir},
		{CopyFrom, chk, dir},
	}
	if len(res.Copies) != len(wantCopies) {
		t.Fatalf("copies: got %v", res.Copies)
	}
	for i, w := range wantCopies {
		if res.Copies[i] != w {
			t.Fatalf("copy %d: got %v, want %v", i, res.Copies[i], w)
		}
	}
}

func TestRewritePassthrough(t *testing.T) {
	input := "%Mem=4GB\n%NProcShared=4\n%NoSave\n%Chk=data.chk\n#P HF\n\ntitle\n\n0 1\nH 0. 0. 0.\n\n"
	res, out := runRewrite(t, input, RewriteOptions{})

	if out != input {
		t.Fatalf("input altered without overrides:\n%s", out)
	}
	if res.NProcs != 4 || res.Memory != "4GB" {
		t.Fatalf("resources: got %d %q", res.NProcs, res.Memory)
	}
	// data.chk does not exist, so only the retrieval leg is scheduled.
	if len(res.Copies) != 1 || res.Copies[0].Direction != CopyFrom ||
		res.Copies[0].File != "data.chk" {
		t.Fatalf("copies: got %v", res.Copies)
	}
}

func TestRewriteNoDirectives(t *testing.T) {
	input := "#P HF\n\nwater\n\n0 1\nO 0. 0. 0.\n\n"
	res, out := runRewrite(t, input, RewriteOptions{})

	if out != input {
		t.Fatalf("rewrite not a no-op:\n%s", out)
	}
	if res.NProcs != 0 || res.Memory != "" || len(res.Copies) != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestRewriteLink1(t *testing.T) {
	input := "#P HF Opt\n\nstep 1\n\n0 1\nH 0. 0. 0.\n\n--Link1--\n#P HF Freq\n\nstep 2\n\n0 1\nH 0. 0. 0.\n\n"
	_, out := runRewrite(t, input, RewriteOptions{NProcs: 4})

	if n := strings.Count(out, "%NProcShared=4\n"); n != 2 {
		t.Fatalf("header injected %d times, want 2:\n%s", n, out)
	}
	idx := strings.Index(out, "--Link1--")
	if idx < 0 || !strings.HasPrefix(out[idx:], "--Link1--\n%NProcShared=4\n") {
		t.Fatalf("header not re-injected after --Link1--:\n%s", out)
	}
}

func TestParseRouteFeatures(t *testing.T) {
	tests := []struct {
		route      string
		anharmonic bool
		vibronic   bool
	}{
		{"#p b3lyp freq", false, false},
		{"#p opt freq=noraman", false, false},
		{"#p freq=(fc,readfcht)", false, true},
		{"#p freq=fcht", false, true},
		{"#p td freq=(ht,savenm)", false, true},
		{"#p freq=readanharm", true, false},
		{"#p freq=(anharmonic,print)", true, false},
		{"#p FREQ=Anharm", true, false},
		{"#p freq=(fc) freq=anharm", true, true},
	}
	for _, tc := range tests {
		f := parseRoute(tc.route)
		if f.anharmonic != tc.anharmonic || f.vibronic != tc.vibronic {
			t.Fatalf("%q: got anharmonic=%v vibronic=%v", tc.route, f.anharmonic, f.vibronic)
		}
	}
}

func TestRewriteRouteCopies(t *testing.T) {
	res, _ := runRewrite(t, "#P HF geomview FChk\n\ntitle\n\n0 1\nH 0. 0. 0.\n\n",
		RewriteOptions{RootDir: "/work"})

	want := []CopyOp{
		{CopyFrom, "points.off", "/work"},
		{CopyFrom, "Test.FChk", "/work"},
	}
	if len(res.Copies) != len(want) {
		t.Fatalf("copies: got %v", res.Copies)
	}
	for i, w := range want {
		if res.Copies[i] != w {
			t.Fatalf("copy %d: got %v, want %v", i, res.Copies[i], w)
		}
	}
}

func TestRewriteAuxiliaryFiles(t *testing.T) {
	dir := t.TempDir()
	aux := filepath.Join(dir, "modes.dat")
	if err := os.WriteFile(aux, []byte("1 2 3"), 0o644); err != nil {
		t.Fatalf("write aux: %v", err)
	}

	input := "#P freq=(fc,ht)\n\ntitle\n\n0 1\nH 0. 0. 0.\n\n" + aux + "\nnot.a.file.xyz\n\n"
	res, _ := runRewrite(t, input, RewriteOptions{RootDir: dir})

	// Only the existing file with a recognized extension is staged.
	if len(res.Copies) != 1 || res.Copies[0] != (CopyOp{CopyTo, aux, dir}) {
		t.Fatalf("copies: got %v", res.Copies)
	}
}
