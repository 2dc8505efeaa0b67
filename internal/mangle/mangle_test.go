package mangle

import (
	"testing"

	"github.com/go-quicktest/qt"

	"github.com/symcloak/symcloak/internal/hasher"
)

func newCodec(t *testing.T) *Codec {
	t.Helper()
	h, err := hasher.New(hasher.Config{
		Algorithm: hasher.SHA256,
		Prefix:    hasher.PrefixTyped,
		Length:    12,
		Salt:      "k",
	})
	qt.Assert(t, qt.IsNil(err))
	return New(h)
}

func TestIsMangled(t *testing.T) {
	t.Parallel()

	qt.Assert(t, qt.IsTrue(IsMangled("_ZN7MyClass6methodEv")))
	qt.Assert(t, qt.IsTrue(IsMangled("_Z3foov")))
	qt.Assert(t, qt.IsFalse(IsMangled("printf")))
	qt.Assert(t, qt.IsFalse(IsMangled("_Z")))
	qt.Assert(t, qt.IsFalse(IsMangled("main")))
}

func TestParseNested(t *testing.T) {
	t.Parallel()

	c, err := Parse("_ZN7MyClass6methodEv")
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.IsTrue(c.IsMangled))
	qt.Assert(t, qt.IsTrue(c.IsNested))
	qt.Assert(t, qt.IsTrue(c.HasClass))
	qt.Assert(t, qt.IsFalse(c.HasNamespace))
	qt.Assert(t, qt.Equals(c.Class(), "MyClass"))
	qt.Assert(t, qt.Equals(c.Method(), "method"))
	qt.Assert(t, qt.Equals(c.Params, "v"))
}

func TestParseDeepNesting(t *testing.T) {
	t.Parallel()

	// ns::ns2::Class::method keeps all four components.
	c, err := Parse("_ZN2ns3ns25Outer6methodEi")
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.HasLen(c.Nested, 4))
	qt.Assert(t, qt.Equals(c.Namespace(), "ns"))
	qt.Assert(t, qt.Equals(c.Class(), "Outer"))
	qt.Assert(t, qt.Equals(c.Method(), "method"))
	qt.Assert(t, qt.Equals(c.Params, "i"))
}

func TestParseConstructorDestructor(t *testing.T) {
	t.Parallel()

	c, err := Parse("_ZN7MyClassC1Ev")
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.IsTrue(c.IsConstructor))
	qt.Assert(t, qt.Equals(c.CtorDtor, "C1"))
	qt.Assert(t, qt.Equals(c.Class(), "MyClass"))
	qt.Assert(t, qt.Equals(c.Method(), ""))

	c, err = Parse("_ZN7MyClassD0Ev")
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.IsTrue(c.IsDestructor))
	qt.Assert(t, qt.Equals(c.CtorDtor, "D0"))
}

func TestParseConstQualifier(t *testing.T) {
	t.Parallel()

	c, err := Parse("_ZNK7MyClass3getEv")
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.IsTrue(c.IsConst))
	qt.Assert(t, qt.Equals(c.Class(), "MyClass"))
	qt.Assert(t, qt.Equals(c.Method(), "get"))
}

func TestParseSpecialSymbols(t *testing.T) {
	t.Parallel()

	c, err := Parse("_ZTV7MyClass")
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.IsTrue(c.IsVTable))

	c, err = Parse("_ZTI7MyClass")
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.IsTrue(c.IsTypeinfo))

	c, err = Parse("_ZTS7MyClass")
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.IsTrue(c.IsTypeinfoName))
}

func TestParseMalformed(t *testing.T) {
	t.Parallel()

	for _, name := range []string{
		"_ZN6MyCla",            // length exceeds remaining input
		"_ZN7MyClass6method",   // unterminated N…E
		"_ZN0Ev",               // zero length
		"_Z999999999999999foo", // overflowing length
		"_ZNxEv",               // unsupported token
	} {
		_, err := Parse(name)
		qt.Assert(t, qt.ErrorIs(err, ErrMalformedMangling), qt.Commentf("input %q", name))
	}
}

func TestObfuscateMethodShape(t *testing.T) {
	t.Parallel()

	c := newCodec(t)
	out, err := c.Obfuscate("_ZN7MyClass6methodEv")
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Matches(out, `_ZN[0-9]+C[0-9a-f]{10}[0-9]+M[0-9a-f]{10}Ev`))

	// The output must still parse as a well-shaped mangled name.
	reparsed, err := Parse(out)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.HasLen(reparsed.Nested, 2))
	qt.Assert(t, qt.Equals(reparsed.Params, "v"))
}

func TestObfuscateClassCache(t *testing.T) {
	t.Parallel()

	c := newCodec(t)
	out1, err := c.Obfuscate("_ZN7MyClass6methodEv")
	qt.Assert(t, qt.IsNil(err))
	out2, err := c.Obfuscate("_ZN7MyClass7method2Ev")
	qt.Assert(t, qt.IsNil(err))

	// Both symbols go through the class cache, so the class token
	// matches across them.
	p1, err := Parse(out1)
	qt.Assert(t, qt.IsNil(err))
	p2, err := Parse(out2)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(p1.Nested[0].Name, p2.Nested[0].Name))
	qt.Assert(t, qt.Not(qt.Equals(p1.Nested[1].Name, p2.Nested[1].Name)))
}

func TestObfuscateVTable(t *testing.T) {
	t.Parallel()

	c := newCodec(t)
	method, err := c.Obfuscate("_ZN7MyClass6methodEv")
	qt.Assert(t, qt.IsNil(err))
	vtable, err := c.Obfuscate("_ZTV7MyClass")
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Matches(vtable, `_ZTV[0-9]+C[0-9a-f]{10}`))

	// The vtable's class token equals the one used by the method symbol.
	pm, err := Parse(method)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(vtable, "_ZTV"+lengthPrefix(pm.Nested[0].Name)))
}

func TestObfuscateTypeinfo(t *testing.T) {
	t.Parallel()

	c := newCodec(t)
	ti, err := c.Obfuscate("_ZTI7MyClass")
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Matches(ti, `_ZTI[0-9a-f]{10}`))

	ts, err := c.Obfuscate("_ZTS7MyClass")
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Matches(ts, `_ZTS[0-9a-f]{10}`))
	qt.Assert(t, qt.Not(qt.Equals(ti[4:], ts[4:])))
}

func TestObfuscateDeepNesting(t *testing.T) {
	t.Parallel()

	c := newCodec(t)
	out, err := c.Obfuscate("_ZN2ns3ns25Outer6methodEi")
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Matches(out,
		`_ZN[0-9]+N[0-9a-f]{8}[0-9]+N[0-9a-f]{8}[0-9]+C[0-9a-f]{10}[0-9]+M[0-9a-f]{10}Ei`))
}

func TestObfuscateNamespaceCache(t *testing.T) {
	t.Parallel()

	c := newCodec(t)
	out1, err := c.Obfuscate("_ZN5mylib7MyClass6methodEv")
	qt.Assert(t, qt.IsNil(err))
	out2, err := c.Obfuscate("_ZN5mylib5Other5otherEv")
	qt.Assert(t, qt.IsNil(err))

	p1, err := Parse(out1)
	qt.Assert(t, qt.IsNil(err))
	p2, err := Parse(out2)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(p1.Nested[0].Name, p2.Nested[0].Name))
}

func TestObfuscateConstructor(t *testing.T) {
	t.Parallel()

	c := newCodec(t)
	ctor, err := c.Obfuscate("_ZN7MyClassC1Ev")
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Matches(ctor, `_ZN[0-9]+C[0-9a-f]{10}C1Ev`))

	// The constructor's class token matches the vtable's.
	vtable, err := c.Obfuscate("_ZTV7MyClass")
	qt.Assert(t, qt.IsNil(err))
	pc, err := Parse(ctor)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(vtable, "_ZTV"+lengthPrefix(pc.Nested[0].Name)))
}

func TestObfuscateNonNested(t *testing.T) {
	t.Parallel()

	c := newCodec(t)
	out, err := c.Obfuscate("_Z3foov")
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Matches(out, `_Z12[0-9a-f]{12}v`))
}

func TestObfuscatePreservesParams(t *testing.T) {
	t.Parallel()

	c := newCodec(t)
	out, err := c.Obfuscate("_ZN7MyClass6methodEiPKcd")
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.IsTrue(len(out) > 6))
	qt.Assert(t, qt.Equals(out[len(out)-6:], "EiPKcd"))
}

func TestObfuscateVoidArity(t *testing.T) {
	t.Parallel()

	c := newCodec(t)
	out, err := c.Obfuscate("_Z3foo")
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(out[len(out)-1:], "v"))
}

func TestObfuscateTemplateSuffix(t *testing.T) {
	t.Parallel()

	c := newCodec(t)
	out, err := c.Obfuscate("_ZN6VectorIiE4sizeEv")
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Matches(out, `_ZN[0-9]+C[0-9a-f]{10}IiE[0-9]+M[0-9a-f]{10}Ev`))
}

func TestObfuscateTemplateTrailer(t *testing.T) {
	t.Parallel()

	c := newCodec(t)
	out, err := c.Obfuscate("_Z3maxIiEiT_S0_")
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(out[len(out)-9:], "IiEiT_S0_"))
}

func TestObfuscateMalformedFallback(t *testing.T) {
	t.Parallel()

	c := newCodec(t)
	out, err := c.Obfuscate("_ZN6MyCla")
	qt.Assert(t, qt.ErrorIs(err, ErrMalformedMangling))
	qt.Assert(t, qt.Matches(out, `_Z12[0-9a-f]{12}`))
}

func TestObfuscateNotMangled(t *testing.T) {
	t.Parallel()

	c := newCodec(t)
	out, err := c.Obfuscate("printf")
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(out, "printf"))
}

func TestObfuscateMemo(t *testing.T) {
	t.Parallel()

	c := newCodec(t)
	out1, err := c.Obfuscate("_ZN7MyClass6methodEv")
	qt.Assert(t, qt.IsNil(err))
	out2, err := c.Obfuscate("_ZN7MyClass6methodEv")
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(out1, out2))
}

func TestObfuscateDeterminism(t *testing.T) {
	t.Parallel()

	c1 := newCodec(t)
	c2 := newCodec(t)
	for _, name := range []string{
		"_ZN7MyClass6methodEv",
		"_ZTV7MyClass",
		"_Z3foov",
	} {
		out1, err := c1.Obfuscate(name)
		qt.Assert(t, qt.IsNil(err))
		out2, err := c2.Obfuscate(name)
		qt.Assert(t, qt.IsNil(err))
		qt.Assert(t, qt.Equals(out1, out2))
	}
}

func TestDemangleAdvisory(t *testing.T) {
	t.Parallel()

	c := newCodec(t)
	qt.Assert(t, qt.Equals(c.Demangle("_ZN7MyClass6methodEv"), "MyClass::method"))
	qt.Assert(t, qt.Equals(c.Demangle("not_mangled"), "not_mangled"))
}
