// Package dname collects the name-comparison and label primitives the
// zone database is built on. The primitives themselves are not the hard
// part of this repository (see spec section 1); they are thin wrappers
// over github.com/miekg/dns's name handling, generalized from the
// string-based name helpers in the teacher's zone.go (toRadixName,
// isSubDomain, compareLabelsSlice) to the full set of operations the
// query engine needs (wildcard construction, label-sequence extraction,
// DNAME target rewriting).
package dname

import (
	"strings"

	"github.com/miekg/dns"
)

// Fqdn returns name in fully-qualified, lowercase form.
func Fqdn(name string) string {
	return strings.ToLower(dns.Fqdn(name))
}

// Equal reports whether a and b name the same owner, case-insensitively.
func Equal(a, b string) bool {
	return strings.EqualFold(dns.Fqdn(a), dns.Fqdn(b))
}

// IsSubdomain reports whether child is equal to or a descendant of parent.
func IsSubdomain(child, parent string) bool {
	return dns.IsSubDomain(dns.Fqdn(parent), dns.Fqdn(child))
}

// CountLabels returns the number of labels in name, not counting the
// root; the root name itself has zero labels.
func CountLabels(name string) int {
	return dns.CountLabel(dns.Fqdn(name))
}

// SplitLabels returns name's labels, most-significant (leftmost) first,
// without the trailing root label.
func SplitLabels(name string) []string {
	name = dns.Fqdn(name)
	if name == "." {
		return nil
	}
	idx := dns.Split(name)
	labels := make([]string, len(idx))
	for i, off := range idx {
		end := len(name) - 1
		if i+1 < len(idx) {
			end = idx[i+1] - 1
		}
		labels[i] = name[off:end]
	}
	return labels
}

// IsWildcard reports whether name's leftmost label is "*".
func IsWildcard(name string) bool {
	name = dns.Fqdn(name)
	return len(name) >= 2 && name[0] == '*' && name[1] == '.'
}

// WildcardFor returns "*." prepended to the immediate parent name, i.e.
// the wildcard owner that would apply directly beneath parent.
func WildcardFor(parent string) string {
	parent = dns.Fqdn(parent)
	if parent == "." {
		return "*."
	}
	return "*." + parent
}

// TrimWildcard strips a leading "*." label, returning the wildcard's
// parent name (the "terminal name" in spec terms).
func TrimWildcard(name string) string {
	name = dns.Fqdn(name)
	if !IsWildcard(name) {
		return name
	}
	_, rest, ok := strings.Cut(name, ".")
	if !ok {
		return "."
	}
	return rest
}

// LabelSequence returns the rightmost keep labels of name, i.e. name
// with its leftmost (CountLabels(name)-keep) labels removed. Used by wildcard_blocked to strip one leftmost label at a
// time down to the wildcard's terminal name.
func LabelSequence(name string, keep int) string {
	labels := SplitLabels(name)
	n := len(labels)
	if keep >= n {
		return dns.Fqdn(name)
	}
	if keep <= 0 {
		return "."
	}
	return dns.Fqdn(strings.Join(labels[n-keep:], ".") + ".")
}

// Concat rewrites the owner name prefix of a name below "from" (a DNAME
// owner) so that it is rooted at "to" instead -- the DNAME substitution
// of spec section 4.4's DNAME result / E6.
func Concat(name, from, to string) (string, bool) {
	name, from, to = dns.Fqdn(name), dns.Fqdn(from), dns.Fqdn(to)
	if !IsSubdomain(name, from) {
		return "", false
	}
	prefixLabels := CountLabels(name) - CountLabels(from)
	if prefixLabels <= 0 {
		return to, true
	}
	labels := SplitLabels(name)
	prefix := strings.Join(labels[:prefixLabels], ".")
	return Fqdn(prefix + "." + to), true
}

// CanonicalKey returns a byte string whose lexicographic order matches
// DNS canonical name order (RFC 4034 section 6.1): labels compared
// right-to-left, each label lowercased. Every label is terminated by a
// 0x00 byte, which sorts below any byte of a presentation-format label,
// so a label sorts before every longer label it is a prefix of, and one
// key is a prefix of another exactly when its name is an ancestor of
// the other's. This is the key used to index names in the trie, the
// same reversed-label trick the teacher's toRadixName used to preserve
// NSEC ordering in a plain radix tree.
func CanonicalKey(name string) string {
	labels := SplitLabels(name)
	if len(labels) == 0 {
		return "\x00"
	}
	rev := make([]string, len(labels))
	for i, l := range labels {
		rev[len(labels)-1-i] = strings.ToLower(l)
	}
	return "\x00" + strings.Join(rev, "\x00") + "\x00"
}
