// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package safecopy

import (
	"fmt"
	"io"
)

const copyBufferSize = 10 * 1024

// CopyData copies all remaining bytes from source to target. A write that
// transfers fewer bytes than requested (common with pipes and sockets) is
// resumed from the unwritten remainder rather than treated as an error.
func CopyData(target io.Writer, source io.Reader) error {
	buf := make([]byte, copyBufferSize)

	for {
		nread, readErr := source.Read(buf)

		out := buf[:nread]
		for len(out) > 0 {
			nwritten, err := target.Write(out)
			if err != nil {
				return fmt.Errorf("failed to write data:\n%w", err)
			}
			if nwritten <= 0 {
				return fmt.Errorf("failed to write data:\n%w", io.ErrShortWrite)
			}
			out = out[nwritten:]
		}

		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return fmt.Errorf("failed to read data:\n%w", readErr)
		}
	}
}
