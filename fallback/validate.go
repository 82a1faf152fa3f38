package fallback

import (
	"context"
	"time"

	"github.com/sun-rs/three"
	"github.com/sun-rs/three/process"
)

// defaultValidateTimeout bounds the external "git apply --check" invocation;
// it never modifies the working tree.
const defaultValidateTimeout = 30 * time.Second

// ValidatePatchSyntax performs the syntactic patch check requested by
// validate_patch=true: it feeds patchBody on stdin to `git apply --check`
// in workDir and treats a non-zero exit as a contract failure. No file in
// workDir is ever modified, whether the check passes or fails.
func ValidatePatchSyntax(ctx context.Context, workDir, patchBody string) *three.Error {
	if patchBody == "" {
		return three.NewError(three.KindContractPatchInvalid, "no patch body available to validate")
	}

	out, err := process.Run(ctx, "git", []string{"apply", "--check"}, workDir, patchBody, defaultValidateTimeout, process.Options{})
	if err != nil {
		return three.NewError(three.KindContractPatchInvalid, "invoking git apply --check: %v", err)
	}
	if out.ExitCode != 0 {
		return three.NewError(three.KindContractPatchInvalid, "git apply --check failed").WithStderr(out.Stderr)
	}
	return nil
}
