// Package svm is the support vector engine behind the novelty classifier.
//
// It exposes the libsvm-shaped capability the detector needs: parameter
// checking, one-class training (SMO with shrinking and a kernel row cache),
// decision values, k-fold cross-validation, and a libsvm-compatible text
// model format so models can be inspected or reused with libsvm tooling.
//
// Problems are dense: every row carries one value per feature.
package svm
