package pak

// magic identifies a pak trailer.
const magic = 0x5A6F12E1

// Version is a pak format revision. Versions are ordered; most format
// behaviors gate on "version >= X".
type Version int

const (
	// VersionInitial is the first revision, with per-entry timestamps.
	VersionInitial Version = iota + 1
	// VersionNoTimestamps removes entry timestamps.
	VersionNoTimestamps
	// VersionCompressionEncryption adds compression and encryption support.
	VersionCompressionEncryption
	// VersionIndexEncryption adds index encryption.
	VersionIndexEncryption
	// VersionRelativeChunkOffsets makes block offsets relative to the record.
	VersionRelativeChunkOffsets
	// VersionDeleteRecords adds record deletion for patch archives.
	VersionDeleteRecords
	// VersionEncryptionKeyUuid adds the encryption key UUID to the trailer.
	VersionEncryptionKeyUuid
	// VersionFNameBasedCompression stores compression method names in the
	// trailer (4 slots).
	VersionFNameBasedCompression
	// VersionFNameBasedCompression2 adds a fifth compression name slot. It
	// shares on-disk ordinal 8 with VersionFNameBasedCompression; the
	// ordinal does not tell them apart, only the trailer size does.
	VersionFNameBasedCompression2
	// VersionFrozenIndex adds the frozen-index marker byte.
	VersionFrozenIndex
	// VersionPathHashIndex replaces the flat index with the path-hash and
	// full-directory index.
	VersionPathHashIndex
	// VersionFnv64BugFix corrects the path hash function. The index layout
	// is identical to VersionPathHashIndex.
	VersionFnv64BugFix
)

var versionNames = [...]string{
	"Initial", "NoTimestamps", "CompressionEncryption", "IndexEncryption",
	"RelativeChunkOffsets", "DeleteRecords", "EncryptionKeyUuid",
	"FNameBasedCompression", "FNameBasedCompression2", "FrozenIndex",
	"PathHashIndex", "Fnv64BugFix",
}

func (v Version) String() string {
	if v >= VersionInitial && v <= VersionFnv64BugFix {
		return versionNames[v-VersionInitial]
	}
	return "Unknown"
}

// Ordinal returns the on-disk version number. VersionFNameBasedCompression
// and VersionFNameBasedCompression2 share ordinal 8.
func (v Version) Ordinal() uint32 {
	switch {
	case v <= VersionFNameBasedCompression:
		return uint32(v)
	case v == VersionFNameBasedCompression2:
		return 8
	default:
		return uint32(v) - 1
	}
}

// versionFromOrdinal maps an on-disk version number to a Version. Ordinal 8
// resolves to VersionFNameBasedCompression; a writer producing the second
// revision is indistinguishable on disk.
func versionFromOrdinal(n uint32) (Version, bool) {
	switch {
	case n >= 1 && n <= 8:
		return Version(n), true
	case n == 9:
		return VersionFrozenIndex, true
	case n == 10:
		return VersionPathHashIndex, true
	case n == 11:
		return VersionFnv64BugFix, true
	}
	return 0, false
}

// Versions returns all revisions in ascending order.
func Versions() []Version {
	vs := make([]Version, 0, VersionFnv64BugFix-VersionInitial+1)
	for v := VersionInitial; v <= VersionFnv64BugFix; v++ {
		vs = append(vs, v)
	}
	return vs
}

// VersionByName returns the revision with the given name.
func VersionByName(name string) (Version, bool) {
	for v := VersionInitial; v <= VersionFnv64BugFix; v++ {
		if v.String() == name {
			return v, true
		}
	}
	return 0, false
}

// footerSize returns the byte size of the trailer for a version, measured
// back from the end of the archive.
func (v Version) footerSize() int64 {
	// magic + version: 2*u32, index offset + size: 2*u64, index hash: 20.
	size := int64(4 + 4 + 8 + 8 + 20)
	if v >= VersionEncryptionKeyUuid {
		size += 16 // encryption key uuid
	}
	if v >= VersionIndexEncryption {
		size += 1 // index encrypted flag
	}
	if v == VersionFrozenIndex {
		size += 1 // frozen index marker
	}
	if v >= VersionFNameBasedCompression {
		size += 32 * 4 // compression method names
	}
	if v >= VersionFNameBasedCompression2 {
		size += 32 // fifth compression name slot
	}
	return size
}
