// Package branchword supplies the fixed adjective/noun vocabularies
// used to auto-generate human-friendly branch names ("adj_noun"),
// carried verbatim from original_source/kishu/kishu/storage/branch.py
// so generated names match the original tool's vocabulary exactly.
package branchword

import "math/rand"

// Adjectives is the fixed vocabulary of branch-name adjectives.
var Adjectives = []string{
	"agile",
	"algebraic",
	"analytic",
	"atomic",
	"biochemical",
	"biogenic",
	"catalytic",
	"chaotic",
	"chromatic",
	"complex",
	"convergent",
	"cosmic",
	"diagonal",
	"dynamic",
	"electrostatic",
	"elemental",
	"entropic",
	"exponential",
	"fractal",
	"genetic",
	"genomic",
	"geometric",
	"inertial",
	"integer",
	"intrinsic",
	"invariant",
	"ionic",
	"isotopic",
	"iterative",
	"kinematic",
	"kinetic",
	"logarithmic",
	"luminescent",
	"luminous",
	"molecular",
	"nebular",
	"nebulous",
	"neural",
	"numeric",
	"orthogonal",
	"oscillating",
	"pulsating",
	"quantum",
	"radiant",
	"radiogenic",
	"rational",
	"recursive",
	"resilient",
	"resonant",
	"scalar",
	"sonic",
	"statistical",
	"stellar",
	"subatomic",
	"symmetric",
	"thermal",
	"topological",
	"trigonometric",
	"vibrant",
	"viscous",
}

// Nouns is the fixed vocabulary of branch-name nouns.
var Nouns = []string{
	"allele",
	"atom",
	"bacteria",
	"beam",
	"bolt",
	"catalyst",
	"cell",
	"core",
	"cytoplasm",
	"dna",
	"doppler",
	"electrode",
	"electron",
	"enzyme",
	"fermentation",
	"flux",
	"force",
	"fuse",
	"gene",
	"genome",
	"heat",
	"heliocentric",
	"hydrocarbon",
	"hypothesis",
	"ion",
	"isotope",
	"kinetics",
	"lens",
	"ligand",
	"light",
	"magnetism",
	"mass",
	"microorganism",
	"nebula",
	"neuron",
	"orb",
	"orbit",
	"oscillation",
	"photosynthesis",
	"pixel",
	"plasma",
	"plasmid",
	"polymer",
	"prism",
	"prokaryote",
	"proton",
	"pulse",
	"quantum",
	"quark",
	"radiance",
	"reactor",
	"rna",
	"spark",
	"spin",
	"supernova",
	"thermodynamics",
	"transcription",
	"valve",
	"vesicle",
	"wave",
}

// Random returns a new "adjective_noun" branch name drawn from the
// fixed vocabularies. It is not guaranteed unique; callers retry
// against MetadataStore on collision.
func Random() string {
	adj := Adjectives[rand.Intn(len(Adjectives))]
	noun := Nouns[rand.Intn(len(Nouns))]
	return adj + "_" + noun
}
