package ingest

import "io"

const readChunkSize = 32 * 1024

// ReadUpTo consumes r until EOF or until more than limit bytes have been
// seen. On overflow it reports truncated with no byte payload and closes r
// if it is a closer, so the producer stops feeding a stream nobody will
// read. It never buffers more than limit plus one chunk.
func ReadUpTo(r io.Reader, limit int64) ([]byte, bool, error) {
	buf := make([]byte, 0, readChunkSize)
	chunk := make([]byte, readChunkSize)
	var total int64

	for {
		n, err := r.Read(chunk)
		if n > 0 {
			total += int64(n)
			if total > limit {
				if closer, ok := r.(io.Closer); ok {
					// best effort; an already-closed stream is fine
					_ = closer.Close()
				}
				return nil, true, nil
			}
			buf = append(buf, chunk[:n]...)
		}
		if err == io.EOF {
			return buf, false, nil
		}
		if err != nil {
			return nil, false, err
		}
	}
}
