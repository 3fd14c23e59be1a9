// Package secure keeps secret values in guarded memory.
//
// The account store caches every secret it fetches from a secret store for
// the rest of the run. Those values are held in memguard enclaves: encrypted
// while at rest in memory, kept out of swap where mlock is available, and
// wiped when the process purges memguard on exit.
//
// # Usage
//
//	buf, err := secure.NewSecureString(value)
//	if err != nil {
//	    return err
//	}
//	defer buf.Destroy()
//
//	plain, err := buf.Reveal()
//
// Reveal returns an ordinary Go string. Callers should keep it only as long
// as they need it; the exporter writes it to the CSV file and drops it.
//
// # Platform Behavior
//
// Linux requires RLIMIT_MEMLOCK to be large enough for mlock. When locking
// fails memguard still encrypts the enclave, so values never sit in the heap
// in plaintext between uses.
package secure
