package main

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"padiclattice/internal/exact"
	"padiclattice/internal/padic"
)

var errStack = errors.New("stack underflow")

// maxArg bounds precisions, shifts and exponents given on the command line.
// Larger ones make p^n too big to compute.
const maxArg = 1 << 16

// parseLiteral reads "a", "a/b" or a decimal, optionally followed by
// "@prec" for an explicit absolute precision.
func parseLiteral(d *padic.Domain, tok string) (*padic.Element, error) {
	text, precText, hasPrec := strings.Cut(tok, "@")
	r, ok := new(big.Rat).SetString(text)
	if !ok {
		return nil, fmt.Errorf("unknown token %q", tok)
	}
	var opts []padic.ElementOption
	if hasPrec {
		prec, err := strconv.Atoi(precText)
		if err != nil {
			return nil, fmt.Errorf("invalid precision in %q: %w", tok, err)
		}
		if prec < -maxArg || prec > maxArg {
			return nil, fmt.Errorf("invalid precision in %q: out of range [-%d, %d]", tok, maxArg, maxArg)
		}
		opts = append(opts, padic.WithPrecision(prec))
	}
	return d.Element(exact.New(d.Prime(), r), opts...)
}

type machine struct {
	dom   *padic.Domain
	stack []*padic.Element
	vars  map[string]*padic.Element
}

func (m *machine) pop() (*padic.Element, error) {
	if len(m.stack) == 0 {
		return nil, errStack
	}
	e := m.stack[len(m.stack)-1]
	m.stack = m.stack[:len(m.stack)-1]
	return e, nil
}

func (m *machine) pop2() (*padic.Element, *padic.Element, error) {
	b, err := m.pop()
	if err != nil {
		return nil, nil, err
	}
	a, err := m.pop()
	if err != nil {
		return nil, nil, err
	}
	return a, b, nil
}

func (m *machine) unary(f func(*padic.Element) (*padic.Element, error)) error {
	a, err := m.pop()
	if err != nil {
		return err
	}
	r, err := f(a)
	if err != nil {
		return err
	}
	m.stack = append(m.stack, r)
	return nil
}

func (m *machine) binary(f func(a, b *padic.Element) (*padic.Element, error)) error {
	a, b, err := m.pop2()
	if err != nil {
		return err
	}
	r, err := f(a, b)
	if err != nil {
		return err
	}
	m.stack = append(m.stack, r)
	return nil
}

// intArg parses the integer after prefix, e.g. ">>3" or "infer@12".
func intArg(tok, prefix string) (int, error) {
	n, err := strconv.Atoi(strings.TrimPrefix(tok, prefix))
	if err != nil {
		return 0, fmt.Errorf("invalid argument in %q: %w", tok, err)
	}
	if n < -maxArg || n > maxArg {
		return 0, fmt.Errorf("invalid argument in %q: out of range [-%d, %d]", tok, maxArg, maxArg)
	}
	return n, nil
}

func (m *machine) step(tok string) error {
	switch tok {
	case "+":
		return m.binary((*padic.Element).Add)
	case "-":
		return m.binary((*padic.Element).Sub)
	case "*":
		return m.binary((*padic.Element).Mul)
	case "/":
		return m.binary((*padic.Element).Div)
	case "neg":
		return m.unary((*padic.Element).Neg)
	case "inv":
		return m.unary((*padic.Element).Invert)
	case "unit":
		return m.unary((*padic.Element).UnitPart)
	case "dup":
		return m.unary(func(a *padic.Element) (*padic.Element, error) {
			m.stack = append(m.stack, a)
			return a.Copy()
		})
	case "lift":
		return m.unary(func(a *padic.Element) (*padic.Element, error) {
			return a.LiftToPrecision(exact.Infinity)
		})
	}

	var n int
	var err error
	switch {
	case strings.HasPrefix(tok, "$"):
		e, ok := m.vars[tok[1:]]
		if !ok {
			return fmt.Errorf("undefined variable %q", tok[1:])
		}
		m.stack = append(m.stack, e)
		return nil
	case strings.HasPrefix(tok, ">") && !strings.HasPrefix(tok, ">>"):
		e, err := m.pop()
		if err != nil {
			return err
		}
		m.vars[tok[1:]] = e
		return nil
	case strings.HasPrefix(tok, "<<"):
		if n, err = intArg(tok, "<<"); err == nil {
			err = m.unary(func(a *padic.Element) (*padic.Element, error) { return a.ShiftLeft(n) })
		}
	case strings.HasPrefix(tok, ">>"):
		if n, err = intArg(tok, ">>"); err == nil {
			err = m.unary(func(a *padic.Element) (*padic.Element, error) { return a.ShiftRight(n) })
		}
	case strings.HasPrefix(tok, "^"):
		if n, err = intArg(tok, "^"); err == nil {
			err = m.unary(func(a *padic.Element) (*padic.Element, error) { return a.Pow(n) })
		}
	case strings.HasPrefix(tok, "bigoh@"):
		if n, err = intArg(tok, "bigoh@"); err == nil {
			err = m.unary(func(a *padic.Element) (*padic.Element, error) { return a.AddBigOh(n) })
		}
	case strings.HasPrefix(tok, "lift@"):
		if n, err = intArg(tok, "lift@"); err == nil {
			err = m.unary(func(a *padic.Element) (*padic.Element, error) { return a.LiftToPrecision(n) })
		}
	case strings.HasPrefix(tok, "infer@"):
		if n, err = intArg(tok, "infer@"); err == nil {
			err = m.unary(func(a *padic.Element) (*padic.Element, error) { return a.LiftToPrecisionInferred(n) })
		}
	default:
		var e *padic.Element
		if e, err = parseLiteral(m.dom, tok); err == nil {
			m.stack = append(m.stack, e)
		}
	}
	return err
}

// evalRPN evaluates a whitespace-separated postfix expression in d.
//
//	1@10 >x 1@5 >y $x $y + $x $y - +
//
// binds x = 1 + O(2^10) and y = 1 + O(2^5) and computes (x+y) + (x-y).
func evalRPN(ctx context.Context, d *padic.Domain, expr string) (*padic.Element, error) {
	m := &machine{dom: d, vars: make(map[string]*padic.Element)}
	for _, tok := range strings.Fields(expr) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := m.step(tok); err != nil {
			return nil, fmt.Errorf("%s: %w", tok, err)
		}
	}
	if len(m.stack) != 1 {
		return nil, fmt.Errorf("expression leaves %d values on the stack", len(m.stack))
	}
	return m.stack[0], nil
}
