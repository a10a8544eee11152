package build

import (
	"fmt"
	"strings"
)

// CompilerEnv builds the csh commands preparing the compiler environment
// for a Gaussian build. rootPath is the compiler's installation root;
// fullPath the resolved version/flavor directory beneath it.
func CompilerEnv(name, rootPath, fullPath string) (string, error) {
	switch strings.ToUpper(name) {
	case "NVHPC":
		return fmt.Sprintf(`
setenv NVHPCSDK %s
set nvbasedir = "%s"
set nvcudadir = "${nvbasedir}/cuda"
set nvcompdir = "${nvbasedir}/compilers"
set nvmathdir = "${nvbasedir}/math_libs"
set nvcommdir = "${nvbasedir}/comm_libs"
set NVPATH = "${nvcudadir}/bin:${nvcompdir}/bin:${nvcommdir}/mpi/bin"
set NVLDPATH = "${nvcudadir}/lib64:${nvcudadir}/extras/CUPTI/lib64:${nvcompdir}/lib"
set NVLDPATH = "${NVLDPATH}:${nvmathdir}/lib64:${nvcommdir}/mpi/lib:"
set NVLDPATH = "${NVLDPATH}:${nvcommdir}/nccl/lib:${nvcommdir}/nvshmem/lib"
set NVCPATH = "${nvmathdir}/include:${nvcommdir}/mpi/include:${nvcommdir}/nccl/include"
set NVCPATH = "${NVCPATH}:${nvcommdir}/nvshmem/include"
set NVMANPATH = "${nvcompdir}/man"

# For Gaussian, set PGI-related environment vars to match NVHPC
setenv PGI ${NVHPCSDK}
setenv PGIDIR ${nvcompdir}

if ($?PATH) then
    setenv PATH ${PATH}:${NVPATH}
else
    setenv PATH ${NVPATH}
endif
if ($?LD_LIBRARY_PATH) then
    setenv LD_LIBRARY_PATH ${LD_LIBRARY_PATH}:${NVLDPATH}
else
    setenv LD_LIBRARY_PATH ${NVLDPATH}
endif
if ($?MANPATH) then
    setenv MANPATH ${MANPATH}:${NVMANPATH}
else
    setenv MANPATH ${NVMANPATH}
endif
`, rootPath, fullPath), nil

	case "PGI":
		return fmt.Sprintf(`
setenv PGIDIR %s
setenv MPIDIR %s/mpi/mpich

if ($?PATH) then
    setenv PATH ${PATH}:${PGIDIR}/bin
else
    setenv PATH ${PGIDIR}/bin
endif
if ($?LD_LIBRARY_PATH) then
    setenv LD_LIBRARY_PATH ${LD_LIBRARY_PATH}:${PGIDIR}/lib
else
    setenv LD_LIBRARY_PATH ${PGIDIR}/lib
endif
if ($?MANPATH) then
    setenv MANPATH ${MANPATH}:${PGIDIR}/man
else
    setenv MANPATH ${PGIDIR}/man
endif
`, fullPath, fullPath), nil
	}

	return "", fmt.Errorf("%w: %q", ErrUnknownCompiler, name)
}

// GaussianCompileScript builds the csh commands compiling a full Gaussian
// installation in gxxDir for one architecture.
func GaussianCompileScript(head, gxxDir, gxx, arch string) string {
	return head + fmt.Sprintf(`
setenv %[1]sroot %[2]s
rehash
cd $%[1]sroot/%[1]s
source $%[1]sroot/%[1]s/bsd/%[1]s.login
./bsd/bld%[1]s all %[3]s >& build.log
`, gxx, gxxDir, arch)
}

// WorkingCompileScript builds the csh commands compiling a working tree in
// workDir against the base installation in gxxDir.
func WorkingCompileScript(head, gxxDir, workDir, gxx string) string {
	return head + fmt.Sprintf(`
if ($?PYTHONPATH) then
    setenv PYTHONPATH ''
endif
setenv %[1]sroot %[2]s
rehash
source $%[1]sroot/%[1]s/bsd/%[1]s.login
cd %[3]s
mk
`, gxx, gxxDir, workDir)
}
